package modelfile

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// scalarTypes maps model file type names to Go types. A trailing '?' makes
// the type nullable, e.g. "int?" is *int.
var scalarTypes = map[string]reflect.Type{
	"bool":     reflect.TypeOf(false),
	"string":   reflect.TypeOf(""),
	"int":      reflect.TypeOf(int(0)),
	"int8":     reflect.TypeOf(int8(0)),
	"int16":    reflect.TypeOf(int16(0)),
	"int32":    reflect.TypeOf(int32(0)),
	"int64":    reflect.TypeOf(int64(0)),
	"uint":     reflect.TypeOf(uint(0)),
	"uint8":    reflect.TypeOf(uint8(0)),
	"uint16":   reflect.TypeOf(uint16(0)),
	"uint32":   reflect.TypeOf(uint32(0)),
	"uint64":   reflect.TypeOf(uint64(0)),
	"float32":  reflect.TypeOf(float32(0)),
	"float64":  reflect.TypeOf(float64(0)),
	"bytes":    reflect.TypeOf([]byte(nil)),
	"time":     reflect.TypeOf(time.Time{}),
	"duration": reflect.TypeOf(time.Duration(0)),
	"uuid":     reflect.TypeOf(uuid.UUID{}),
}

// TypeOf returns the Go type named by a model file type name
func TypeOf(name string) (reflect.Type, bool) {
	name = strings.TrimSpace(name)
	nullable := strings.HasSuffix(name, "?")
	t, ok := scalarTypes[strings.TrimSuffix(name, "?")]
	if !ok {
		return nil, false
	}
	if nullable {
		return reflect.PointerTo(t), true
	}
	return t, true
}

// TypeName returns the model file name of t, or t.String() when t has none
func TypeName(t reflect.Type) string {
	suffix := ""
	base := t
	if t.Kind() == reflect.Pointer {
		base, suffix = t.Elem(), "?"
	}
	for name, candidate := range scalarTypes {
		if candidate == base {
			return name + suffix
		}
	}
	return t.String()
}

// TypeNames returns the known type names in sorted order
func TypeNames() []string {
	names := make([]string, 0, len(scalarTypes))
	for name := range scalarTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
