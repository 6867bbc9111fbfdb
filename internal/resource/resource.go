// Package resource implements the check, in and out operations of the
// Jira resource on top of the payload builder and the API client.
package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rubrical-studios/jira-resource/internal/api"
	"github.com/rubrical-studios/jira-resource/internal/config"
	"github.com/rubrical-studios/jira-resource/internal/defaults"
	"github.com/rubrical-studios/jira-resource/internal/envsubst"
	"github.com/rubrical-studios/jira-resource/internal/fields"
	"github.com/rubrical-studios/jira-resource/internal/payload"
	"github.com/rubrical-studios/jira-resource/internal/version"
)

// IssueClient is the subset of *api.Client the resource needs. It allows
// mocking Jira in tests.
type IssueClient interface {
	CreateIssue(ctx context.Context, body any) (*api.CreatedIssue, error)
	UpdateIssue(ctx context.Context, existing *api.Issue, body any) (*api.Issue, error)
	SearchBySummary(ctx context.Context, project, summary string) (*api.Issue, error)
	AddWatcher(ctx context.Context, key, user string) error
	Transition(ctx context.Context, key, name string) error
	BrowseURL(key string) string
}

// Resource creates or updates issues for one configured source.
type Resource struct {
	Source  config.Source
	Client  IssueClient
	Builder *payload.Builder
	Logger  *slog.Logger
}

// Options configures New.
type Options struct {
	// Env is the placeholder snapshot; nil snapshots the process environment.
	Env *envsubst.Resolver

	// Files reads field files; nil reads from disk.
	Files fields.FileReader

	Logger *slog.Logger

	// HTTPLog receives request traces when non-nil.
	HTTPLog io.Writer
}

// New wires a Resource for source from the embedded defaults.
func New(source config.Source, opts Options) (*Resource, error) {
	defs, err := defaults.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	timeout, err := source.TimeoutOr(defs.Timeout)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := opts.Env
	if env == nil {
		env = envsubst.FromEnviron()
	}

	retry := api.DefaultRetryPolicy
	retry.MaxRetries = source.MaxRetriesOr(defs.MaxRetries)

	transport := api.NewHTTPTransport(api.TransportOptions{
		Timeout:        timeout,
		Retry:          retry,
		UserAgent:      version.UserAgent(defs.UserAgent),
		Log:            opts.HTTPLog,
		LogVerboseHTTP: opts.HTTPLog != nil,
	})

	client := api.NewClient(api.ClientOptions{
		BaseURL:   source.BaseURL(),
		APIPath:   defs.APIPath,
		Email:     source.Email,
		APIToken:  source.APIToken,
		Transport: transport,
		Logger:    logger,
	})

	return &Resource{
		Source:  source,
		Client:  client,
		Builder: payload.NewBuilder(fields.NewResolver(env, opts.Files), defs.IssueType),
		Logger:  logger,
	}, nil
}

// CreateIssue builds a create payload and sends it. On any failure the
// result is nil.
func (r *Resource) CreateIssue(ctx context.Context, baseDir string, params config.Params) (*api.CreatedIssue, error) {
	body, err := r.Builder.BuildCreate(baseDir, r.Source, params)
	if err != nil {
		return nil, err
	}
	return r.Client.CreateIssue(ctx, body)
}

// UpdateIssue builds an update payload for existing and sends it. On
// success the existing issue is returned unchanged.
func (r *Resource) UpdateIssue(ctx context.Context, baseDir string, existing *api.Issue, params config.Params) (*api.Issue, error) {
	body, err := r.Builder.BuildUpdate(baseDir, existing, r.Source, params)
	if err != nil {
		return nil, err
	}
	return r.Client.UpdateIssue(ctx, existing, body)
}

// Out updates the issue in the project whose summary matches, or creates
// one, then adds watchers and applies transitions in order.
func (r *Resource) Out(ctx context.Context, baseDir string, params config.Params) (*config.Response, error) {
	spec, ok := params.SummarySpec()
	if !ok {
		return nil, fmt.Errorf("params.summary is required")
	}
	summary, err := r.Builder.Resolver.ResolveText(baseDir, "summary", spec)
	if err != nil {
		return nil, err
	}

	explicit := params.Project
	if explicit == nil {
		if declared, ok := params.Fields["project"]; ok && declared.Kind != fields.KindDate {
			explicit = declared.Raw
		}
	}
	project := projectKey(explicit, r.Source.Project)
	existing, err := r.Client.SearchBySummary(ctx, project, summary)
	if err != nil {
		return nil, err
	}

	var id, key string
	if existing != nil {
		r.Logger.Info("updating issue", "key", existing.Key, "summary", summary)
		updated, err := r.UpdateIssue(ctx, baseDir, existing, params)
		if err != nil {
			return nil, err
		}
		id, key = updated.ID.String(), updated.Key
	} else {
		r.Logger.Info("creating issue", "project", project, "summary", summary)
		created, err := r.CreateIssue(ctx, baseDir, params)
		if err != nil {
			return nil, err
		}
		id, key = created.ID.String(), created.Key
	}

	for _, user := range params.Watchers {
		r.Logger.Debug("adding watcher", "key", key, "user", user)
		if err := r.Client.AddWatcher(ctx, key, user); err != nil {
			return nil, err
		}
	}
	for _, name := range params.Transitions {
		r.Logger.Info("transitioning issue", "key", key, "transition", name)
		if err := r.Client.Transition(ctx, key, name); err != nil {
			return nil, err
		}
	}

	return &config.Response{
		Version: config.Version{Ref: key},
		Metadata: []config.MetadataPair{
			{Name: "id", Value: id},
			{Name: "key", Value: key},
			{Name: "url", Value: r.Client.BrowseURL(key)},
		},
	}, nil
}

// projectKey returns the key used to scope the summary search.
func projectKey(explicit any, fallback string) string {
	switch p := explicit.(type) {
	case nil:
		return fallback
	case map[string]any:
		if k, ok := p["key"]; ok {
			return fields.Stringify(k)
		}
		return fallback
	default:
		return fields.Stringify(p)
	}
}

// Check reports the versions newer than or equal to current. Issues are
// only ever written, so the current version is echoed or nothing is.
func Check(current *config.Version) []config.Version {
	if current == nil || current.Ref == "" {
		return []config.Version{}
	}
	return []config.Version{*current}
}

// In echoes the requested version. Nothing is fetched or written.
func In(requested *config.Version) (*config.Response, error) {
	if requested == nil || requested.Ref == "" {
		return nil, fmt.Errorf("in requires a version")
	}
	return &config.Response{Version: *requested}, nil
}
