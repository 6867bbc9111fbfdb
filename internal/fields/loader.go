package fields

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rubrical-studios/jira-resource/internal/envsubst"
)

// FilePlaceholder is replaced by the file contents inside a text template.
const FilePlaceholder = "$FILE"

// FileReader reads a file relative to the build directory.
type FileReader interface {
	ReadFile(baseDir, path string) ([]byte, error)
}

// OSReader reads from the local filesystem. Relative paths are joined to
// baseDir; absolute paths are used as given.
type OSReader struct{}

// ReadFile implements FileReader.
func (OSReader) ReadFile(baseDir, path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return os.ReadFile(path)
}

// FileReadError reports a referenced file that could not be read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// IsFileReadError reports whether err was caused by an unreadable file.
func IsFileReadError(err error) bool {
	var fre *FileReadError
	return errors.As(err, &fre)
}

// Loader turns scalars, file references and $FILE templates into text,
// applying placeholder substitution to the result.
type Loader struct {
	Files FileReader
	Env   *envsubst.Resolver
}

// Load resolves spec to its final value. Structured values that are not
// file references are returned unchanged.
func (l *Loader) Load(baseDir string, spec FieldSpec) (any, error) {
	switch spec.Kind {
	case KindFile:
		return l.readFile(baseDir, spec.File)
	case KindTemplatedFile:
		contents, err := l.readFile(baseDir, spec.File)
		if err != nil {
			return nil, err
		}
		return l.Env.Resolve(strings.ReplaceAll(spec.Text, FilePlaceholder, contents)), nil
	case KindPassthrough:
		return spec.Raw, nil
	default:
		return l.Env.Resolve(Stringify(spec.Raw)), nil
	}
}

// LoadText is Load for values that must end up as text, such as summary.
func (l *Loader) LoadText(baseDir string, spec FieldSpec) (string, error) {
	v, err := l.Load(baseDir, spec)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected text, got %s value", spec.Kind)
}

func (l *Loader) readFile(baseDir, path string) (string, error) {
	files := l.Files
	if files == nil {
		files = OSReader{}
	}

	data, err := files.ReadFile(baseDir, path)
	if err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}

	text := string(data)
	if strings.HasSuffix(text, "\n") {
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
	}
	return l.Env.Resolve(text), nil
}

// Stringify renders a scalar the way Jira's text fields expect it:
// 12345 becomes "12345", true becomes "true".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
