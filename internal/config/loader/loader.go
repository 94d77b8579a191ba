// Package loader reads configuration sources into generic maps.
//
// File reads a TOML or YAML document and EnvLoader turns prefixed
// environment variables into the same nested shape, so sources can be
// layered with DeepMerge before decoding.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for a config file with an unknown
// extension.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Loader produces one configuration layer. A source that does not exist
// yields a nil map and no error.
type Loader interface {
	Load() (map[string]any, error)
}

// FileSystem is the file access a File needs.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

type osFS struct{}

func (osFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// OS reads from the host file system.
var OS FileSystem = osFS{}

// File loads a config document in a given format.
type File struct {
	fsys   FileSystem
	path   string
	format Format
}

// NewFile returns a loader for path in format f.
func NewFile(fsys FileSystem, path string, f Format) *File {
	return &File{fsys: fsys, path: path, format: f}
}

// ForPath returns a File whose format matches the extension of path.
func ForPath(fsys FileSystem, path string) (*File, error) {
	f, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return NewFile(fsys, path, f), nil
}

// Path is the file being read.
func (l *File) Path() string { return l.path }

// Format is the document format.
func (l *File) Format() Format { return l.format }

// Load implements Loader.
func (l *File) Load() (map[string]any, error) {
	data, err := l.fsys.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}
	return l.format.parse(l.path, data)
}

// LoadReader parses a document from r, ignoring the configured path.
func (l *File) LoadReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return l.format.parse("<reader>", data)
}

// ParseError locates a syntax error in a config document. Line and Column
// are zero when the decoder does not report them.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DeepMerge copies src over dst and returns dst. Nested maps merge key by
// key, anything else in src replaces the dst value.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				dst[k] = DeepMerge(cur, sub)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
