package metadata

import "github.com/conduit-lang/ormmeta/internal/orm/members"

// ResolveMember selects the Go member used to access pb for the given intent.
// Materialization passes forConstruction and forSet. A nil member with a nil
// error is returned for a collection navigation that may legitimately have
// no member for the intent.
func ResolveMember(pb PropertyBase, forConstruction, forSet bool) (members.MemberInfo, error) {
	propertyInfo := pb.PropertyInfo()
	fieldInfo := pb.FieldInfo()
	isCollection := isCollectionNavigation(pb)
	mode := pb.PropertyAccessMode()

	switch mode {
	case AccessModeDefault, AccessModeFieldDuringConstruction:
		if forConstruction {
			if fieldInfo != nil && !fieldInfo.IsReadOnly() {
				return fieldInfo, nil
			}
			if mode == AccessModeFieldDuringConstruction && !isCollection {
				return nil, accessErr(pb, ErrMissingBackingField, "access mode is %s", mode)
			}
		}

		if forSet {
			if propertyInfo != nil {
				if setter := propertyInfo.FindSetterProperty(); setter != nil {
					return setter, nil
				}
			}
			if fieldInfo != nil && !fieldInfo.IsReadOnly() {
				return fieldInfo, nil
			}
			if !isCollection {
				return nil, accessErr(pb, ErrNoFieldOrSetter, "")
			}
		}

		if propertyInfo != nil {
			if getter := propertyInfo.FindGetterProperty(); getter != nil {
				return getter, nil
			}
		}
		if fieldInfo != nil {
			return fieldInfo, nil
		}
		return nil, accessErr(pb, ErrNoFieldOrGetter, "")

	case AccessModeField:
		if fieldInfo == nil {
			if !forSet || !isCollection {
				return nil, accessErr(pb, ErrNoBackingField, "access mode is %s", mode)
			}
			return nil, nil
		}
		if forSet && fieldInfo.IsReadOnly() {
			if !isCollection {
				return nil, accessErr(pb, ErrReadonlyField, "field '%s'", fieldInfo.Name())
			}
			return nil, nil
		}
		return fieldInfo, nil

	default:
		if propertyInfo == nil {
			return nil, accessErr(pb, ErrNoProperty, "access mode is %s", mode)
		}
		if forSet {
			setter := propertyInfo.FindSetterProperty()
			if setter == nil {
				if !isCollection {
					return nil, accessErr(pb, ErrNoSetter, "")
				}
				return nil, nil
			}
			return setter, nil
		}
		getter := propertyInfo.FindGetterProperty()
		if getter == nil {
			return nil, accessErr(pb, ErrNoGetter, "")
		}
		return getter, nil
	}
}
