package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rubrical-studios/jira-resource/internal/fields"
	"gopkg.in/yaml.v3"
)

// Source is the resource configuration shared by check, in and out.
type Source struct {
	URL      string `json:"url" yaml:"url"`
	Email    string `json:"email" yaml:"email"`
	APIToken string `json:"apitoken" yaml:"apitoken"`
	Project  string `json:"project" yaml:"project"`

	Debug      bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	Timeout    string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries *int   `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// Params describes the issue to create or update.
type Params struct {
	Summary      *fields.FieldSpec                 `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description  *fields.FieldSpec                 `json:"description,omitempty" yaml:"description,omitempty"`
	Fields       map[string]fields.FieldSpec       `json:"fields,omitempty" yaml:"fields,omitempty"`
	CustomFields map[string]fields.CustomFieldSpec `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`

	Project       any    `json:"project,omitempty" yaml:"project,omitempty"`
	IssueType     any    `json:"issuetype,omitempty" yaml:"issuetype,omitempty"`
	IssueTypeName string `json:"issue_type,omitempty" yaml:"issue_type,omitempty"`
	Parent        any    `json:"parent,omitempty" yaml:"parent,omitempty"`

	Watchers    []string `json:"watchers,omitempty" yaml:"watchers,omitempty"`
	Transitions []string `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// SummarySpec returns the summary declaration. The top-level shorthand
// takes precedence over fields.summary.
func (p *Params) SummarySpec() (fields.FieldSpec, bool) {
	return p.textSpec(p.Summary, "summary")
}

// DescriptionSpec returns the description declaration. The top-level
// shorthand takes precedence over fields.description.
func (p *Params) DescriptionSpec() (fields.FieldSpec, bool) {
	return p.textSpec(p.Description, "description")
}

func (p *Params) textSpec(shorthand *fields.FieldSpec, name string) (fields.FieldSpec, bool) {
	if shorthand != nil && !shorthand.IsZero() {
		return *shorthand, true
	}
	if spec, ok := p.Fields[name]; ok && !spec.IsZero() {
		return spec, true
	}
	return fields.FieldSpec{}, false
}

// Version identifies an issue by its key.
type Version struct {
	Ref string `json:"ref"`
}

// MetadataPair is one name/value entry shown by Concourse next to a version.
type MetadataPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Response is what in and out print on stdout.
type Response struct {
	Version  Version        `json:"version"`
	Metadata []MetadataPair `json:"metadata,omitempty"`
}

// CheckRequest is the stdin payload of check.
type CheckRequest struct {
	Source  Source   `json:"source"`
	Version *Version `json:"version,omitempty"`
}

// InRequest is the stdin payload of in.
type InRequest struct {
	Source  Source          `json:"source"`
	Version *Version        `json:"version,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// OutRequest is the stdin payload of out.
type OutRequest struct {
	Source Source `json:"source"`
	Params Params `json:"params"`
}

// Validate checks that the request carries everything out needs.
func (r *OutRequest) Validate() error {
	if err := r.Source.Validate(); err != nil {
		return err
	}
	if r.Source.Project == "" && r.Params.Project == nil {
		return fmt.Errorf("source.project or params.project is required")
	}
	if _, ok := r.Params.SummarySpec(); !ok {
		return fmt.Errorf("params.summary is required")
	}
	return nil
}

// ReadRequest decodes a JSON request from r into v. Numbers are kept as
// json.Number so ids round-trip unchanged.
func ReadRequest(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty request")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	return nil
}

// File is a local .jira-resource.yml used to run out outside Concourse.
type File struct {
	Source Source `yaml:"source"`
	Params Params `yaml:"params,omitempty"`
}

// ConfigFileName is the default configuration file name
const ConfigFileName = ".jira-resource.yml"

// Load reads and parses a configuration file from the given path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromDirectory finds and loads the config file from the given directory.
// It searches up the directory tree until it finds a .jira-resource.yml file
// or reaches the filesystem root.
func LoadFromDirectory(dir string) (*File, error) {
	configPath, err := FindConfigFile(dir)
	if err != nil {
		return nil, err
	}
	return Load(configPath)
}

// FindConfigFile searches for .jira-resource.yml starting from dir and
// walking up the directory tree until found or filesystem root is reached.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory", ConfigFileName, startDir)
		}
		dir = parent
	}
}

// Request turns the file into the request out would receive on stdin.
func (f *File) Request() *OutRequest {
	return &OutRequest{Source: f.Source, Params: f.Params}
}

// Validate checks that required source fields are present
func (s *Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("source.url must be an http or https URL, got %q", s.URL)
	}
	if s.Email == "" {
		return fmt.Errorf("source.email is required")
	}
	if s.APIToken == "" {
		return fmt.Errorf("source.apitoken is required")
	}
	if _, err := s.TimeoutOr(0); err != nil {
		return err
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("source.max_retries must not be negative")
	}
	return nil
}

// TimeoutOr returns the configured request timeout, or def when unset.
func (s *Source) TimeoutOr(def time.Duration) (time.Duration, error) {
	if s.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid source.timeout %q: %w", s.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("source.timeout must be positive, got %q", s.Timeout)
	}
	return d, nil
}

// MaxRetriesOr returns the configured retry budget, or def when unset.
func (s *Source) MaxRetriesOr(def int) int {
	if s.MaxRetries == nil {
		return def
	}
	return *s.MaxRetries
}

// ApplyEnvOverrides applies environment variable overrides to the source.
// Supported environment variables:
//   - JIRA_URL: overrides source.url
//   - JIRA_EMAIL: overrides source.email
//   - JIRA_API_TOKEN: overrides source.apitoken
//   - JIRA_PROJECT: overrides source.project
//   - JIRA_MAX_RETRIES: overrides source.max_retries
func (s *Source) ApplyEnvOverrides() {
	if v := os.Getenv("JIRA_URL"); v != "" {
		s.URL = v
	}
	if v := os.Getenv("JIRA_EMAIL"); v != "" {
		s.Email = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		s.APIToken = v
	}
	if v := os.Getenv("JIRA_PROJECT"); v != "" {
		s.Project = v
	}
	if v := os.Getenv("JIRA_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxRetries = &n
		}
	}
}

// BaseURL returns the configured URL without a trailing slash.
func (s *Source) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}
