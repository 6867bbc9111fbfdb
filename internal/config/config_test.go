package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubrical-studios/jira-resource/internal/fields"
)

func TestLoad_ValidConfig_ReturnsSourceAndParams(t *testing.T) {
	// ARRANGE: Path to valid test config
	configPath := filepath.Join("..", "..", "testdata", "config", "valid.jira-resource.yml")

	// ACT: Load the configuration
	cfg, err := Load(configPath)

	// ASSERT: No error and correct values
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Source.URL != "https://example.atlassian.net" {
		t.Errorf("Expected url 'https://example.atlassian.net', got '%s'", cfg.Source.URL)
	}
	if cfg.Source.Project != "ABC" {
		t.Errorf("Expected project 'ABC', got '%s'", cfg.Source.Project)
	}
	if cfg.Params.IssueTypeName != "Task" {
		t.Errorf("Expected issue_type 'Task', got '%s'", cfg.Params.IssueTypeName)
	}
	if len(cfg.Params.Watchers) != 1 || cfg.Params.Watchers[0] != "qa@example.com" {
		t.Errorf("Expected one watcher, got %v", cfg.Params.Watchers)
	}
	if len(cfg.Params.Transitions) != 1 || cfg.Params.Transitions[0] != "In Progress" {
		t.Errorf("Expected one transition, got %v", cfg.Params.Transitions)
	}
}

func TestLoad_ValidConfig_ClassifiesFieldSpecs(t *testing.T) {
	// ARRANGE: Path to valid test config
	configPath := filepath.Join("..", "..", "testdata", "config", "valid.jira-resource.yml")

	// ACT: Load the configuration
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// ASSERT: Each declared value has the expected kind
	if cfg.Params.Summary == nil || cfg.Params.Summary.Kind != fields.KindScalar {
		t.Errorf("Expected scalar summary, got %+v", cfg.Params.Summary)
	}
	if cfg.Params.Description == nil || cfg.Params.Description.Kind != fields.KindFile {
		t.Errorf("Expected file description, got %+v", cfg.Params.Description)
	}
	if cfg.Params.Description.File != "notes/description.txt" {
		t.Errorf("Expected description file 'notes/description.txt', got '%s'", cfg.Params.Description.File)
	}
	if got := cfg.Params.Fields["duedate"].Kind; got != fields.KindDate {
		t.Errorf("Expected duedate to be a date, got %s", got)
	}
	team, ok := cfg.Params.CustomFields["team"]
	if !ok {
		t.Fatal("Expected custom field 'team'")
	}
	if team.Key() != "customfield_10201" || !team.IsSelectList() {
		t.Errorf("Expected selectlist customfield_10201, got %s (type %q)", team.Key(), team.Type)
	}
}

func TestLoad_MinimalConfig_ReturnsRequiredFields(t *testing.T) {
	// ARRANGE: Path to minimal test config
	configPath := filepath.Join("..", "..", "testdata", "config", "minimal.jira-resource.yml")

	// ACT: Load the configuration
	cfg, err := Load(configPath)

	// ASSERT: No error, source valid, no params
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := cfg.Source.Validate(); err != nil {
		t.Errorf("Expected valid source, got: %v", err)
	}
	if cfg.Params.Summary != nil || len(cfg.Params.Fields) != 0 {
		t.Errorf("Expected empty params, got %+v", cfg.Params)
	}
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	// ARRANGE: Path to non-existent file
	configPath := filepath.Join("..", "..", "testdata", "config", "does-not-exist.yml")

	// ACT: Load the configuration
	_, err := Load(configPath)

	// ASSERT: Error is returned
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	// ARRANGE: Path to invalid YAML
	configPath := filepath.Join("..", "..", "testdata", "config", "invalid-yaml-syntax.jira-resource.yml")

	// ACT: Load the configuration
	_, err := Load(configPath)

	// ASSERT: Error is returned
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestSource_Validate(t *testing.T) {
	valid := func() Source {
		return Source{
			URL:      "https://example.atlassian.net",
			Email:    "ci@example.com",
			APIToken: "secret",
			Project:  "ABC",
		}
	}
	negative := -1

	tests := []struct {
		name    string
		mutate  func(s *Source)
		wantErr string
	}{
		{name: "valid", mutate: func(s *Source) {}},
		{name: "missing url", mutate: func(s *Source) { s.URL = "" }, wantErr: "source.url is required"},
		{name: "url without scheme", mutate: func(s *Source) { s.URL = "example.atlassian.net" }, wantErr: "http or https"},
		{name: "missing email", mutate: func(s *Source) { s.Email = "" }, wantErr: "source.email is required"},
		{name: "missing token", mutate: func(s *Source) { s.APIToken = "" }, wantErr: "source.apitoken is required"},
		{name: "bad timeout", mutate: func(s *Source) { s.Timeout = "soon" }, wantErr: "invalid source.timeout"},
		{name: "zero timeout", mutate: func(s *Source) { s.Timeout = "0s" }, wantErr: "must be positive"},
		{name: "negative retries", mutate: func(s *Source) { s.MaxRetries = &negative }, wantErr: "max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)

			err := s.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestSource_TimeoutOr(t *testing.T) {
	s := Source{}
	got, err := s.TimeoutOr(30 * time.Second)
	if err != nil || got != 30*time.Second {
		t.Errorf("Expected default 30s, got %v (%v)", got, err)
	}

	s.Timeout = "45s"
	got, err = s.TimeoutOr(30 * time.Second)
	if err != nil || got != 45*time.Second {
		t.Errorf("Expected 45s, got %v (%v)", got, err)
	}
}

func TestSource_MaxRetriesOr(t *testing.T) {
	s := Source{}
	if got := s.MaxRetriesOr(3); got != 3 {
		t.Errorf("Expected default 3, got %d", got)
	}

	zero := 0
	s.MaxRetries = &zero
	if got := s.MaxRetriesOr(3); got != 0 {
		t.Errorf("Expected explicit 0, got %d", got)
	}
}

func TestSource_BaseURL_TrimsTrailingSlash(t *testing.T) {
	s := Source{URL: "https://example.atlassian.net//"}
	if got := s.BaseURL(); got != "https://example.atlassian.net" {
		t.Errorf("Expected trimmed url, got '%s'", got)
	}
}

func TestOutRequest_Validate(t *testing.T) {
	source := Source{URL: "https://example.atlassian.net", Email: "ci@example.com", APIToken: "secret"}
	summary := fields.Scalar("Build failed")

	tests := []struct {
		name    string
		req     OutRequest
		wantErr string
	}{
		{
			name:    "no project anywhere",
			req:     OutRequest{Source: source, Params: Params{Summary: &summary}},
			wantErr: "project",
		},
		{
			name: "project from params",
			req:  OutRequest{Source: source, Params: Params{Summary: &summary, Project: "XYZ"}},
		},
		{
			name:    "no summary",
			req:     OutRequest{Source: Source{URL: source.URL, Email: source.Email, APIToken: source.APIToken, Project: "ABC"}},
			wantErr: "params.summary is required",
		},
		{
			name: "summary inside fields",
			req: OutRequest{
				Source: Source{URL: source.URL, Email: source.Email, APIToken: source.APIToken, Project: "ABC"},
				Params: Params{Fields: map[string]fields.FieldSpec{"summary": summary}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestParams_SummarySpec_ShorthandWins(t *testing.T) {
	// ARRANGE: Summary given both ways
	short := fields.Scalar("shorthand")
	p := Params{
		Summary: &short,
		Fields:  map[string]fields.FieldSpec{"summary": fields.Scalar("from fields")},
	}

	// ACT
	spec, ok := p.SummarySpec()

	// ASSERT
	if !ok {
		t.Fatal("Expected a summary spec")
	}
	if spec.Raw != "shorthand" {
		t.Errorf("Expected shorthand summary, got %v", spec.Raw)
	}
}

func TestParams_DescriptionSpec_FallsBackToFields(t *testing.T) {
	p := Params{Fields: map[string]fields.FieldSpec{"description": fields.Scalar("body")}}

	spec, ok := p.DescriptionSpec()

	if !ok || spec.Raw != "body" {
		t.Errorf("Expected description from fields, got %v (ok=%v)", spec.Raw, ok)
	}
	if _, ok := (&Params{}).DescriptionSpec(); ok {
		t.Error("Expected no description for empty params")
	}
}

func TestReadRequest_OutRequest(t *testing.T) {
	// ARRANGE: Out request fixture
	f, err := os.Open(filepath.Join("..", "..", "testdata", "requests", "out.json"))
	if err != nil {
		t.Fatalf("Failed to open fixture: %v", err)
	}
	defer f.Close()

	// ACT
	var req OutRequest
	err = ReadRequest(f, &req)

	// ASSERT
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if req.Source.BaseURL() != "https://example.atlassian.net" {
		t.Errorf("Unexpected base url %q", req.Source.BaseURL())
	}
	points := req.Params.Fields["story_points"]
	if points.Kind != fields.KindScalar || points.Raw != json.Number("5") {
		t.Errorf("Expected story_points to stay json.Number 5, got %#v", points.Raw)
	}
	if req.Params.Fields["labels"].Kind != fields.KindPassthrough {
		t.Errorf("Expected labels to pass through, got %s", req.Params.Fields["labels"].Kind)
	}
	if req.Params.CustomFields["build"].Key() != "customfield_10300" {
		t.Errorf("Unexpected custom field key %q", req.Params.CustomFields["build"].Key())
	}
}

func TestReadRequest_CheckRequestWithVersion(t *testing.T) {
	var req CheckRequest
	err := ReadRequest(strings.NewReader(`{"source":{"url":"https://x"},"version":{"ref":"ABC-1"}}`), &req)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if req.Version == nil || req.Version.Ref != "ABC-1" {
		t.Errorf("Expected version ABC-1, got %+v", req.Version)
	}
}

func TestReadRequest_Empty_ReturnsError(t *testing.T) {
	var req CheckRequest
	if err := ReadRequest(strings.NewReader("  \n"), &req); err == nil {
		t.Fatal("Expected error for empty request, got nil")
	}
}

func TestReadRequest_Malformed_ReturnsError(t *testing.T) {
	var req OutRequest
	if err := ReadRequest(strings.NewReader(`{"source":`), &req); err == nil {
		t.Fatal("Expected error for malformed request, got nil")
	}
}

func TestFile_Request(t *testing.T) {
	cfg := &File{Source: Source{Project: "ABC"}, Params: Params{Watchers: []string{"a"}}}

	req := cfg.Request()

	if req.Source.Project != "ABC" || len(req.Params.Watchers) != 1 {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestLoadFromDirectory_FindsConfigFile(t *testing.T) {
	// ARRANGE: Copy the valid config into a temp dir
	testDir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "config", "valid.jira-resource.yml"))
	if err != nil {
		t.Fatalf("Failed to read source file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(testDir, ConfigFileName), data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	// ACT: Load from directory
	cfg, err := LoadFromDirectory(testDir)

	// ASSERT: Config loaded successfully
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Source.Project != "ABC" {
		t.Errorf("Expected project 'ABC', got '%s'", cfg.Source.Project)
	}
}

func TestLoadFromDirectory_NoConfigFile_ReturnsError(t *testing.T) {
	// ARRANGE: Empty directory
	testDir := t.TempDir()

	// ACT: Try to load from directory with no config
	_, err := LoadFromDirectory(testDir)

	// ASSERT: Error is returned
	if err == nil {
		t.Fatal("Expected error for missing config file, got nil")
	}
}

func TestApplyEnvOverrides_OverridesCredentials(t *testing.T) {
	// ARRANGE: Source and env vars
	s := &Source{URL: "https://old", Email: "old@example.com", APIToken: "old", Project: "OLD"}
	t.Setenv("JIRA_URL", "https://new")
	t.Setenv("JIRA_EMAIL", "new@example.com")
	t.Setenv("JIRA_API_TOKEN", "new-token")
	t.Setenv("JIRA_PROJECT", "NEW")

	// ACT: Apply overrides
	s.ApplyEnvOverrides()

	// ASSERT: Everything is overridden
	if s.URL != "https://new" || s.Email != "new@example.com" || s.APIToken != "new-token" || s.Project != "NEW" {
		t.Errorf("Expected all values overridden, got %+v", s)
	}
}

func TestApplyEnvOverrides_MaxRetries(t *testing.T) {
	s := &Source{}
	t.Setenv("JIRA_MAX_RETRIES", "5")

	s.ApplyEnvOverrides()

	if s.MaxRetriesOr(3) != 5 {
		t.Errorf("Expected max retries 5, got %d", s.MaxRetriesOr(3))
	}
}

func TestApplyEnvOverrides_InvalidMaxRetries_Ignored(t *testing.T) {
	s := &Source{}
	t.Setenv("JIRA_MAX_RETRIES", "lots")

	s.ApplyEnvOverrides()

	if s.MaxRetries != nil {
		t.Errorf("Expected max retries unchanged, got %d", *s.MaxRetries)
	}
}

func TestApplyEnvOverrides_NoEnvVars_Unchanged(t *testing.T) {
	// ARRANGE: Source with no env vars set
	s := &Source{URL: "https://old", Project: "OLD"}
	for _, name := range []string{"JIRA_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT", "JIRA_MAX_RETRIES"} {
		t.Setenv(name, "")
	}

	// ACT: Apply overrides
	s.ApplyEnvOverrides()

	// ASSERT: Values unchanged
	if s.URL != "https://old" || s.Project != "OLD" {
		t.Errorf("Expected values unchanged, got %+v", s)
	}
}

func TestFindConfigFile_InCurrentDir_ReturnsPath(t *testing.T) {
	// ARRANGE: Create temp dir with config file
	testDir := t.TempDir()
	configPath := filepath.Join(testDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("source:\n  project: ABC\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	// ACT: Find config starting from same dir
	found, err := FindConfigFile(testDir)

	// ASSERT: Found in current dir
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if found != configPath {
		t.Errorf("Expected %s, got %s", configPath, found)
	}
}

func TestFindConfigFile_InGrandparentDir_ReturnsPath(t *testing.T) {
	// ARRANGE: Create deeply nested dirs, config in grandparent
	grandparentDir := t.TempDir()
	childDir := filepath.Join(grandparentDir, "parent", "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatalf("Failed to create nested dirs: %v", err)
	}
	configPath := filepath.Join(grandparentDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("source:\n  project: ABC\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	// ACT: Find config starting from grandchild dir
	found, err := FindConfigFile(childDir)

	// ASSERT: Found in grandparent dir
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if found != configPath {
		t.Errorf("Expected %s, got %s", configPath, found)
	}
}

func TestFindConfigFile_NotFound_ReturnsError(t *testing.T) {
	// ARRANGE: Empty temp dir (no config anywhere in tree)
	testDir := t.TempDir()
	childDir := filepath.Join(testDir, "subdir")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	// ACT: Try to find config
	_, err := FindConfigFile(childDir)

	// ASSERT: Error returned
	if err == nil {
		t.Fatal("Expected error when no config file exists, got nil")
	}
}
