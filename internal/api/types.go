package api

import (
	"encoding/json"
	"fmt"
)

// FlexibleID holds an id Jira may send either as a string or a number.
type FlexibleID string

// UnmarshalJSON accepts "10001" and 10001 alike.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or number, got %s", data)
}

func (f FlexibleID) String() string {
	return string(f)
}

// Issue is an existing Jira issue. The JSON it was decoded from is kept so
// the issue can be echoed back unchanged.
type Issue struct {
	ID     FlexibleID     `json:"id"`
	Key    string         `json:"key"`
	Self   string         `json:"self,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`

	raw json.RawMessage
}

type issueAlias Issue

// UnmarshalJSON decodes the issue and keeps its raw form.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var a issueAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = Issue(a)
	i.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the issue as it was received, or from its members
// when it was built in code.
func (i Issue) MarshalJSON() ([]byte, error) {
	if len(i.raw) > 0 {
		return i.raw, nil
	}
	return json.Marshal(issueAlias(i))
}

// Summary returns fields.summary, or "" when absent.
func (i *Issue) Summary() string {
	s, _ := i.Fields["summary"].(string)
	return s
}

// CreatedIssue is Jira's answer to a successful create.
type CreatedIssue struct {
	ID   FlexibleID `json:"id"`
	Key  string     `json:"key"`
	Self string     `json:"self"`
}

// SearchResult is one page of a JQL search.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Transition is a workflow step available from an issue's current status.
type Transition struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
	To   struct {
		Name string `json:"name"`
	} `json:"to"`
}

type transitionList struct {
	Transitions []Transition `json:"transitions"`
}

type transitionRequest struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}
