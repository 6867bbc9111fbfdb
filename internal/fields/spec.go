// Package fields resolves declared issue field values (plain scalars, file
// references, $FILE templates, $NOW date expressions and custom field
// declarations) into the values sent to Jira.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rubrical-studios/jira-resource/internal/datexpr"
	"gopkg.in/yaml.v3"
)

// Kind identifies the shape of a declared field value.
type Kind int

const (
	// KindScalar is a string, number or boolean.
	KindScalar Kind = iota
	// KindFile is {file: path}.
	KindFile
	// KindTemplatedFile is {text: template, file: path}.
	KindTemplatedFile
	// KindDate is a string matching the $NOW grammar.
	KindDate
	// KindPassthrough is any other object, array or null.
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindFile:
		return "file"
	case KindTemplatedFile:
		return "templated-file"
	case KindDate:
		return "date"
	case KindPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldSpec is a classified field value. Raw always holds the value as it
// was declared; the other members are populated according to Kind.
type FieldSpec struct {
	Kind Kind
	Raw  any

	// File is the path of a KindFile or KindTemplatedFile value.
	File string
	// Text is the template of a KindTemplatedFile value.
	Text string
	// Expr is the expression of a KindDate value.
	Expr string
}

// Classify decides the Kind of a raw configuration value. Dates are
// checked before anything else, then file references, then structured
// values; whatever remains is a scalar.
func Classify(raw any) FieldSpec {
	switch v := raw.(type) {
	case string:
		if datexpr.Match(v) {
			return FieldSpec{Kind: KindDate, Raw: raw, Expr: v}
		}
		return FieldSpec{Kind: KindScalar, Raw: raw}
	case map[string]any:
		file, ok := v["file"]
		if !ok {
			return FieldSpec{Kind: KindPassthrough, Raw: raw}
		}
		spec := FieldSpec{Kind: KindFile, Raw: raw, File: Stringify(file)}
		if text, ok := v["text"]; ok {
			spec.Kind = KindTemplatedFile
			spec.Text = Stringify(text)
		}
		return spec
	case nil, []any:
		return FieldSpec{Kind: KindPassthrough, Raw: raw}
	default:
		if isScalar(raw) {
			return FieldSpec{Kind: KindScalar, Raw: raw}
		}
		return FieldSpec{Kind: KindPassthrough, Raw: raw}
	}
}

// Scalar is shorthand for a plain string value.
func Scalar(s string) FieldSpec {
	return Classify(s)
}

// IsZero reports whether the spec was never set.
func (s FieldSpec) IsZero() bool {
	return s.Kind == KindScalar && s.Raw == nil
}

// UnmarshalJSON classifies the decoded value. Numbers are kept as
// json.Number so 12345 stays "12345" and never becomes "12345.000000".
func (s *FieldSpec) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*s = Classify(raw)
	return nil
}

// MarshalJSON writes the value back as it was declared.
func (s FieldSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Raw)
}

// UnmarshalYAML classifies the decoded value.
func (s *FieldSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Classify(normalizeYAML(raw))
	return nil
}

// normalizeYAML converts the map[any]any values yaml can produce for
// non-string keys into map[string]any so they survive JSON encoding.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
