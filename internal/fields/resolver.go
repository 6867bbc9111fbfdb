package fields

import (
	"fmt"

	"github.com/rubrical-studios/jira-resource/internal/datexpr"
	"github.com/rubrical-studios/jira-resource/internal/envsubst"
)

// Resolver dispatches each declared field to the date parser or the
// loader according to its Kind.
type Resolver struct {
	Loader *Loader
	Dates  *datexpr.Parser
}

// NewResolver wires a Resolver around an environment snapshot and a file
// reader. A nil reader reads from the local filesystem.
func NewResolver(env *envsubst.Resolver, files FileReader) *Resolver {
	return &Resolver{
		Loader: &Loader{Files: files, Env: env},
		Dates:  datexpr.New(),
	}
}

// Resolve produces the wire value for one field.
func (r *Resolver) Resolve(baseDir, name string, spec FieldSpec) (any, error) {
	if spec.Kind == KindDate {
		ts, err := r.Dates.Parse(spec.Expr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		return ts, nil
	}

	v, err := r.Loader.Load(baseDir, spec)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return v, nil
}

// ResolveText resolves a field that must be text (summary, description).
func (r *Resolver) ResolveText(baseDir, name string, spec FieldSpec) (string, error) {
	if spec.Kind == KindDate {
		v, err := r.Resolve(baseDir, name, spec)
		if err != nil {
			return "", err
		}
		return v.(string), nil
	}

	s, err := r.Loader.LoadText(baseDir, spec)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", name, err)
	}
	return s, nil
}

// ResolveAll resolves every entry of a fields mapping. The first failure
// aborts resolution.
func (r *Resolver) ResolveAll(baseDir string, specs map[string]FieldSpec) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for name, spec := range specs {
		v, err := r.Resolve(baseDir, name, spec)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
