// Package envsubst substitutes Concourse build metadata placeholders
// ($BUILD_ID, $ATC_EXTERNAL_URL, ...) into free text.
package envsubst

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// InstanceVars is the placeholder whose value is rendered as a query string
// instead of being substituted literally.
const InstanceVars = "BUILD_PIPELINE_INSTANCE_VARS"

// Names lists the recognized placeholders.
var Names = []string{
	"BUILD_ID",
	"BUILD_NAME",
	"BUILD_JOB_NAME",
	"BUILD_PIPELINE_NAME",
	InstanceVars,
	"BUILD_TEAM_NAME",
	"ATC_EXTERNAL_URL",
}

// Resolver replaces placeholders using a fixed environment snapshot.
type Resolver struct {
	values  map[string]string
	pattern *regexp.Regexp
}

// New builds a Resolver from an explicit environment snapshot. Only the
// recognized names are consulted; everything else in env is ignored.
func New(env map[string]string) *Resolver {
	values := make(map[string]string)
	for _, name := range Names {
		raw, ok := env[name]
		if !ok {
			continue
		}
		if name == InstanceVars {
			encoded, err := EncodeInstanceVars(raw)
			if err != nil {
				// Leave the placeholder in place rather than inject garbage.
				continue
			}
			raw = encoded
		}
		values[name] = raw
	}

	r := &Resolver{values: values}
	if len(values) == 0 {
		return r
	}

	present := make([]string, 0, len(values))
	for name := range values {
		present = append(present, regexp.QuoteMeta(name))
	}
	// Longest first so alternation never stops at a shorter name.
	sort.Slice(present, func(i, j int) bool {
		if len(present[i]) != len(present[j]) {
			return len(present[i]) > len(present[j])
		}
		return present[i] < present[j]
	})
	r.pattern = regexp.MustCompile(`(?i)\$(` + strings.Join(present, "|") + `)`)
	return r
}

// FromEnviron snapshots the current process environment.
func FromEnviron() *Resolver {
	env := make(map[string]string)
	for _, name := range Names {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return New(env)
}

// Resolve substitutes every recognized placeholder in text. All matches are
// found against the original text in a single pass, so a substituted value
// is never scanned again.
func (r *Resolver) Resolve(text string) string {
	if r == nil || r.pattern == nil {
		return text
	}
	return r.pattern.ReplaceAllStringFunc(text, func(match string) string {
		return r.values[strings.ToUpper(match[1:])]
	})
}

// EncodeInstanceVars renders a JSON object of pipeline instance vars as a
// form-encoded query string. Each key is prefixed with "vars." and each
// value is wrapped in double quotes before encoding, so {"foo":"bar"}
// becomes vars.foo=%22bar%22. Key order follows the JSON document.
func EncodeInstanceVars(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", InstanceVars, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", fmt.Errorf("%s must be a JSON object", InstanceVars)
	}

	var pairs []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", InstanceVars, err)
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return "", fmt.Errorf("failed to parse %s value for %q: %w", InstanceVars, key, err)
		}

		pairs = append(pairs, formEscape("vars."+key)+"="+formEscape(`"`+stringify(value)+`"`))
	}

	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", InstanceVars, err)
	}

	return strings.Join(pairs, "&"), nil
}

// formEscape applies application/x-www-form-urlencoded escaping: only
// ASCII alphanumerics and *-._ stay as they are, and spaces become +.
func formEscape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '*', c == '-', c == '.', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&15])
		}
	}
	return b.String()
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
