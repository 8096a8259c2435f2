package members

import (
	"unicode"
	"unicode/utf8"
)

// BackingFieldCandidates lists the field names probed for a property, in order
func BackingFieldCandidates(propertyName string) []string {
	camel := lowerFirst(propertyName)
	return []string{
		camel,
		"_" + camel,
		"m_" + camel,
		"_" + propertyName,
		"m_" + propertyName,
	}
}

// FindBackingField returns the first field of ti matching the naming
// convention for propertyName whose type equals the property type, or nil.
func FindBackingField(ti *TypeInfo, property *PropertyInfo) *FieldInfo {
	for _, name := range BackingFieldCandidates(property.name) {
		if name == property.name {
			continue
		}
		if f := ti.FindField(name); f != nil && f.typ == property.typ {
			return f
		}
	}
	return nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
