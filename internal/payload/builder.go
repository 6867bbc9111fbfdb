// Package payload assembles the request bodies sent to Jira when an issue
// is created or updated.
package payload

import (
	"fmt"

	"github.com/rubrical-studios/jira-resource/internal/api"
	"github.com/rubrical-studios/jira-resource/internal/config"
	"github.com/rubrical-studios/jira-resource/internal/fields"
)

// DefaultIssueType is used on create when no issue type is given.
const DefaultIssueType = "Bug"

// Payload is the body of a create or update request.
type Payload struct {
	Fields map[string]any `json:"fields"`
}

// Builder turns issue params into payloads.
type Builder struct {
	Resolver  *fields.Resolver
	IssueType string
}

// NewBuilder returns a Builder resolving values through r. An empty
// issueType falls back to DefaultIssueType.
func NewBuilder(r *fields.Resolver, issueType string) *Builder {
	if issueType == "" {
		issueType = DefaultIssueType
	}
	return &Builder{Resolver: r, IssueType: issueType}
}

// BuildCreate assembles the body of a create request: project, issue type,
// parent, summary, description, every other declared field and the custom
// fields.
func (b *Builder) BuildCreate(baseDir string, source config.Source, params config.Params) (*Payload, error) {
	out, err := b.resolveFields(baseDir, params)
	if err != nil {
		return nil, err
	}

	out["project"] = projectRef(params.Project, out["project"], source.Project)
	if it := issueTypeRef(params, out["issuetype"]); it != nil {
		out["issuetype"] = it
	} else {
		out["issuetype"] = map[string]any{"name": b.IssueType}
	}
	setParent(out, params.Parent)

	return &Payload{Fields: out}, nil
}

// BuildUpdate assembles the body of an update request. With only a summary
// the body is the summary and the project; otherwise it is built like a
// create, but issue type and parent are sent only when given explicitly.
// existing is never merged into the body; Jira leaves omitted fields alone.
func (b *Builder) BuildUpdate(baseDir string, existing *api.Issue, source config.Source, params config.Params) (*Payload, error) {
	if existing == nil {
		return nil, fmt.Errorf("update requires an existing issue")
	}

	if summaryOnly(params) {
		spec, _ := params.SummarySpec()
		summary, err := b.Resolver.ResolveText(baseDir, "summary", spec)
		if err != nil {
			return nil, err
		}
		return &Payload{Fields: map[string]any{
			"summary": summary,
			"project": projectRef(params.Project, nil, source.Project),
		}}, nil
	}

	out, err := b.resolveFields(baseDir, params)
	if err != nil {
		return nil, err
	}

	out["project"] = projectRef(params.Project, out["project"], source.Project)
	if it := issueTypeRef(params, out["issuetype"]); it != nil {
		out["issuetype"] = it
	}
	setParent(out, params.Parent)

	return &Payload{Fields: out}, nil
}

func summaryOnly(params config.Params) bool {
	_, hasSummary := params.SummarySpec()
	_, hasDescription := params.DescriptionSpec()
	return hasSummary && !hasDescription &&
		len(params.Fields) == 0 && len(params.CustomFields) == 0 &&
		params.IssueType == nil && params.IssueTypeName == "" && params.Parent == nil
}

// resolveFields resolves summary, description, fields.* and custom fields.
func (b *Builder) resolveFields(baseDir string, params config.Params) (map[string]any, error) {
	rest := make(map[string]fields.FieldSpec, len(params.Fields))
	for name, spec := range params.Fields {
		if name == "summary" || name == "description" {
			continue
		}
		rest[name] = spec
	}

	out, err := b.Resolver.ResolveAll(baseDir, rest)
	if err != nil {
		return nil, err
	}

	if spec, ok := params.SummarySpec(); ok {
		if out["summary"], err = b.Resolver.ResolveText(baseDir, "summary", spec); err != nil {
			return nil, err
		}
	}
	if spec, ok := params.DescriptionSpec(); ok {
		if out["description"], err = b.Resolver.ResolveText(baseDir, "description", spec); err != nil {
			return nil, err
		}
	}

	custom, err := fields.MapCustomFields(params.CustomFields)
	if err != nil {
		return nil, err
	}
	for key, value := range custom {
		out[key] = value
	}

	return out, nil
}

// projectRef returns the top-level project, else the project declared
// under fields, else the source project. Keys are wrapped as {key}.
func projectRef(explicit, declared any, fallback string) any {
	switch {
	case explicit != nil:
		return keyRef(explicit)
	case declared != nil:
		return keyRef(declared)
	default:
		return map[string]any{"key": fallback}
	}
}

// setParent applies the top-level parent, or normalizes a parent declared
// under fields.
func setParent(out map[string]any, explicit any) {
	switch {
	case explicit != nil:
		out["parent"] = keyRef(explicit)
	case out["parent"] != nil:
		out["parent"] = keyRef(out["parent"])
	}
}

func keyRef(v any) any {
	if isObject(v) {
		return v
	}
	return map[string]any{"key": fields.Stringify(v)}
}

// issueTypeRef returns params.issuetype (object as given, name as
// {name}), params.issue_type, or the issue type declared under fields.
// It returns nil when none is set.
func issueTypeRef(params config.Params, declared any) any {
	switch {
	case params.IssueType != nil:
		return nameRef(params.IssueType)
	case params.IssueTypeName != "":
		return map[string]any{"name": params.IssueTypeName}
	case declared != nil:
		return nameRef(declared)
	default:
		return nil
	}
}

func nameRef(v any) any {
	if isObject(v) {
		return v
	}
	return map[string]any{"name": fields.Stringify(v)}
}

func isObject(v any) bool {
	switch v.(type) {
	case map[string]any, map[any]any:
		return true
	default:
		return false
	}
}
