//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// CommandResult holds the result of running a command
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runResource executes check, in or out with the request on stdin, the way
// Concourse does.
func runResource(t *testing.T, name, request string, args ...string) *CommandResult {
	t.Helper()

	cmd := exec.Command(filepath.Join(resourceDir, name), args...)
	cmd.Stdin = strings.NewReader(request)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
		}
		if result.Stderr != "" {
			t.Logf("Command stderr: %s", result.Stderr)
		}
	}

	return result
}

// assertContains checks that the output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()

	if !strings.Contains(output, expected) {
		t.Errorf("Expected output to contain %q\nGot: %s", expected, output)
	}
}

// assertExitCode checks that the command result has the expected exit code.
func assertExitCode(t *testing.T, result *CommandResult, expected int) {
	t.Helper()

	if result.ExitCode != expected {
		t.Errorf("Expected exit code %d, got %d\nStdout: %s\nStderr: %s",
			expected, result.ExitCode, result.Stdout, result.Stderr)
	}
}

// fakeJira keeps issues in memory and serves the endpoints out uses.
type fakeJira struct {
	mu     sync.Mutex
	issues map[string]map[string]any
	bodies []string
	nextID int
	reject bool
}

func newFakeJira(t *testing.T) (*fakeJira, *httptest.Server) {
	t.Helper()
	f := &fakeJira{issues: map[string]map[string]any{}, nextID: 10000}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	f.bodies = append(f.bodies, r.Method+" "+r.URL.Path+" "+string(raw))

	if f.reject && r.Method != http.MethodGet {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/search":
		var issues []map[string]any
		for key, fields := range f.issues {
			issues = append(issues, map[string]any{"id": fields["_id"], "key": key, "fields": fields})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"issues": issues})
	case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue/":
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		_ = json.Unmarshal(raw, &body)
		f.nextID++
		key := "ABC-" + strconv.Itoa(f.nextID-10000)
		body.Fields["_id"] = strconv.Itoa(f.nextID)
		f.issues[key] = body.Fields
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": strconv.Itoa(f.nextID), "key": key})
	case r.Method == http.MethodPut:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeJira) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}
