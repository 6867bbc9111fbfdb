package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIPath is the REST v2 root below the site URL.
const DefaultAPIPath = "/rest/api/2"

// Client talks to one Jira site on behalf of one user.
type Client struct {
	baseURL   string
	apiPath   string
	creds     Credentials
	transport Transport
	logger    *slog.Logger
}

// ClientOptions configures the API client
type ClientOptions struct {
	// BaseURL is the site URL, e.g. https://example.atlassian.net
	BaseURL string

	// APIPath defaults to DefaultAPIPath.
	APIPath string

	Email    string
	APIToken string

	// Transport defaults to an HTTPTransport with DefaultRetryPolicy.
	Transport Transport

	Logger *slog.Logger
}

// NewClient creates a new API client
func NewClient(opts ClientOptions) *Client {
	apiPath := opts.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewHTTPTransport(TransportOptions{Retry: DefaultRetryPolicy})
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiPath:   "/" + strings.Trim(apiPath, "/"),
		creds:     Credentials{Email: opts.Email, APIToken: opts.APIToken},
		transport: transport,
		logger:    logger,
	}
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + c.apiPath + "/" + strings.Join(escaped, "/")
}

// BrowseURL returns the web page of an issue.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + url.PathEscape(key)
}

func (c *Client) send(ctx context.Context, method, target string, body []byte) (*Response, error) {
	c.logger.Debug("jira request", "method", method, "url", target)
	resp, err := c.transport.Send(ctx, method, target, body, c.creds)
	if err != nil {
		c.logger.Debug("jira request failed", "method", method, "url", target, "error", err)
		return nil, err
	}
	c.logger.Debug("jira response", "method", method, "url", target, "status", resp.StatusCode)
	return resp, nil
}

// call is used for the auxiliary endpoints. Failures of any kind come
// back wrapped in an *APIError.
func (c *Client) call(ctx context.Context, operation, resource, method, target string, in, out any) error {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return WrapError(operation, resource, fmt.Errorf("failed to encode request: %w", err))
		}
		body = data
	}

	resp, err := c.send(ctx, method, target, body)
	if err != nil {
		return WrapError(operation, resource, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return WrapError(operation, resource, newHTTPError(resp))
	}
	if err := Interpret(resp, nil, out); err != nil {
		return WrapError(operation, resource, err)
	}
	return nil
}

// CreateIssue posts payload to the issue collection.
func (c *Client) CreateIssue(ctx context.Context, payload any) (*CreatedIssue, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode issue payload: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.endpoint("issue")+"/", body)

	var created CreatedIssue
	if err := Interpret(resp, err, &created); err != nil {
		c.logRejection(err)
		return nil, err
	}
	return &created, nil
}

// UpdateIssue puts payload onto an existing issue. Jira answers an update
// with no body, so the existing issue is returned on success.
func (c *Client) UpdateIssue(ctx context.Context, existing *Issue, payload any) (*Issue, error) {
	if existing == nil || existing.ID == "" {
		return nil, fmt.Errorf("update requires an existing issue id")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode issue payload: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPut, c.endpoint("issue", existing.ID.String()), body)
	if err := Interpret(resp, err, nil); err != nil {
		c.logRejection(err)
		return nil, err
	}
	return existing, nil
}

func (c *Client) logRejection(err error) {
	if rej, ok := err.(*RejectionError); ok {
		c.logger.Debug("jira rejected request", "status", rej.StatusCode, "body", summarizeBody(rej.Body))
	}
}

// SearchBySummary finds the issue in project whose summary is exactly
// summary. Jira's summary~ operator is a fuzzy text match, so candidates
// are filtered locally. It returns nil when there is no such issue.
func (c *Client) SearchBySummary(ctx context.Context, project, summary string) (*Issue, error) {
	jql := fmt.Sprintf(`project="%s" AND summary~"%s"`, escapeJQL(project), escapeJQL(summary))
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", "50")

	var result SearchResult
	if err := c.call(ctx, "search issues in", project, http.MethodGet, c.endpoint("search")+"?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}

	for i := range result.Issues {
		if result.Issues[i].Summary() == summary {
			return &result.Issues[i], nil
		}
	}
	return nil, nil
}

func escapeJQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// AddWatcher adds user to the watchers of issue key.
func (c *Client) AddWatcher(ctx context.Context, key, user string) error {
	return c.call(ctx, "add watcher "+user+" to", key, http.MethodPost, c.endpoint("issue", key, "watchers"), user, nil)
}

// Transitions lists the workflow steps currently available on issue key.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var list transitionList
	if err := c.call(ctx, "list transitions of", key, http.MethodGet, c.endpoint("issue", key, "transitions"), nil, &list); err != nil {
		return nil, err
	}
	return list.Transitions, nil
}

// Transition moves issue key through the step called name. The name is
// matched case-insensitively against the step name, then against the
// name of the status it leads to.
func (c *Client) Transition(ctx context.Context, key, name string) error {
	available, err := c.Transitions(ctx, key)
	if err != nil {
		return err
	}

	t := findTransition(available, name)
	if t == nil {
		return WrapError("transition", key, fmt.Errorf("%w: %q", ErrTransitionNotFound, name))
	}

	var req transitionRequest
	req.Transition.ID = t.ID.String()
	return c.call(ctx, "transition", key, http.MethodPost, c.endpoint("issue", key, "transitions"), req, nil)
}

func findTransition(available []Transition, name string) *Transition {
	for i := range available {
		if strings.EqualFold(available[i].Name, name) {
			return &available[i]
		}
	}
	for i := range available {
		if strings.EqualFold(available[i].To.Name, name) {
			return &available[i]
		}
	}
	return nil
}
