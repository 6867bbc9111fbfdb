// Package defaults provides embedded default configuration for jira-resource.
package defaults

import (
	_ "embed"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yml
var defaultsYAML []byte

// Defaults holds the parsed default configuration.
type Defaults struct {
	IssueType  string        `yaml:"issue_type"`
	APIPath    string        `yaml:"api_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`
}

// Load parses and returns the embedded defaults.
func Load() (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
