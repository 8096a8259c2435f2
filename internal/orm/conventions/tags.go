package conventions

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

// TagName is the struct tag key read by discovery
const TagName = "orm"

// tagOptions holds the settings of one orm struct tag, e.g.
//
//	Email string `orm:"maxlength=255,unique,column=email_address"`
type tagOptions struct {
	ignore      bool
	key         bool
	required    bool
	concurrency bool
	index       bool
	unique      bool

	maxLength      int
	hasMaxLength   bool
	valueGenerated metadata.ValueGenerated
	hasGenerated   bool
	onDelete       metadata.DeleteBehavior
	hasOnDelete    bool

	column     string
	field      string
	foreignKey string
}

func (o tagOptions) empty() bool {
	return o == tagOptions{}
}

// parseTag parses the orm tag of a struct field. A missing tag yields empty options.
func parseTag(tag reflect.StructTag) (tagOptions, error) {
	var opts tagOptions
	raw, ok := tag.Lookup(TagName)
	if !ok {
		return opts, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "-" {
		opts.ignore = true
		return opts, nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, hasValue := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		switch name {
		case "ignore":
			opts.ignore = true
		case "key":
			opts.key = true
		case "required":
			opts.required = true
		case "concurrency":
			opts.concurrency = true
		case "index":
			opts.index = true
		case "unique":
			opts.unique = true
		case "maxlength":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return opts, fmt.Errorf("%w: maxlength %q is not a non-negative integer", ErrInvalidTag, value)
			}
			opts.maxLength, opts.hasMaxLength = n, true
		case "generated":
			vg, err := metadata.ParseValueGenerated(value)
			if err != nil {
				return opts, fmt.Errorf("%w: %v", ErrInvalidTag, err)
			}
			opts.valueGenerated, opts.hasGenerated = vg, true
		case "ondelete":
			db, err := metadata.ParseDeleteBehavior(value)
			if err != nil {
				return opts, fmt.Errorf("%w: %v", ErrInvalidTag, err)
			}
			opts.onDelete, opts.hasOnDelete = db, true
		case "column", "field", "fk":
			if !hasValue || value == "" {
				return opts, fmt.Errorf("%w: %s requires a value", ErrInvalidTag, name)
			}
			switch name {
			case "column":
				opts.column = value
			case "field":
				opts.field = value
			default:
				opts.foreignKey = value
			}
		default:
			return opts, fmt.Errorf("%w: unknown setting %q", ErrInvalidTag, name)
		}
	}
	return opts, nil
}
