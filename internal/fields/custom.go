package fields

import (
	"errors"
	"fmt"
	"strings"
)

// SelectList is the custom field type whose value references an option.
const SelectList = "selectlist"

// ErrInvalidCustomField is returned for declarations that cannot be mapped.
var ErrInvalidCustomField = errors.New("invalid custom field")

// CustomFieldSpec declares one Jira custom field. Value and ValueID are
// alternatives; for a select list Value selects the option by its text and
// ValueID by its option id.
type CustomFieldSpec struct {
	ID      any    `json:"id" yaml:"id"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	ValueID any    `json:"value_id,omitempty" yaml:"value_id,omitempty"`
}

// Key returns the wire name, customfield_<id>.
func (c CustomFieldSpec) Key() string {
	return "customfield_" + Stringify(c.ID)
}

// IsSelectList reports whether the field references an option.
func (c CustomFieldSpec) IsSelectList() bool {
	return strings.EqualFold(c.Type, SelectList)
}

// MapCustomFields converts declarations keyed by a local alias into Jira
// field keys and shapes:
//
//	{id: 10201, value: "dave!"}                        -> customfield_10201: "dave!"
//	{id: 10201, type: selectlist, value: "dave!"}      -> customfield_10201: {value: "dave!"}
//	{id: 10201, type: selectlist, value_id: 123}       -> customfield_10201: {id: "123"}
func MapCustomFields(specs map[string]CustomFieldSpec) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for alias, spec := range specs {
		if spec.ID == nil || Stringify(spec.ID) == "" {
			return nil, fmt.Errorf("%w %s: id is required", ErrInvalidCustomField, alias)
		}

		key := spec.Key()
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w %s: %s is declared more than once", ErrInvalidCustomField, alias, key)
		}

		switch {
		case !spec.IsSelectList():
			value := spec.Value
			if value == nil {
				value = spec.ValueID
			}
			out[key] = Stringify(value)
		case spec.Value != nil:
			out[key] = map[string]any{"value": spec.Value}
		case spec.ValueID != nil:
			out[key] = map[string]any{"id": Stringify(spec.ValueID)}
		default:
			return nil, fmt.Errorf("%w %s: selectlist needs value or value_id", ErrInvalidCustomField, alias)
		}
	}
	return out, nil
}
