package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

// MemFS is an in-memory file system for testing.
type MemFS map[string]string

func (m MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func TestForPath(t *testing.T) {
	tests := map[string]struct {
		path    string
		want    string
		wantErr bool
	}{
		"toml":    {path: "luaproc.toml", want: "toml"},
		"yaml":    {path: "luaproc.yaml", want: "yaml"},
		"yml":     {path: "LUAPROC.YML", want: "yaml"},
		"unknown": {path: "luaproc.json", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			l, err := ForPath(MemFS{}, test.path)
			if test.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("ForPath(%q) error = %v, want ErrUnsupportedFormat", test.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForPath(%q) error: %v", test.path, err)
			}
			if got := l.Format().Name; got != test.want {
				t.Errorf("Format().Name = %q, want %q", got, test.want)
			}
			if l.Path() != test.path {
				t.Errorf("Path() = %q, want %q", l.Path(), test.path)
			}
		})
	}
}

func TestFileLoaders(t *testing.T) {
	fsys := MemFS{
		"a.toml": "[process]\ngrace_period = \"250ms\"\nread_chunk_size = 512\n",
		"a.yaml": "process:\n  grace_period: 250ms\n  read_chunk_size: 512\n",
	}

	for _, path := range []string{"a.toml", "a.yaml"} {
		t.Run(path, func(t *testing.T) {
			l, err := ForPath(fsys, path)
			if err != nil {
				t.Fatal(err)
			}

			data, err := l.Load()
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			section, ok := data["process"].(map[string]any)
			if !ok {
				t.Fatalf("process section = %T, want map[string]any", data["process"])
			}
			if section["grace_period"] != "250ms" {
				t.Errorf("grace_period = %v, want 250ms", section["grace_period"])
			}
			// TOML decodes integers as int64 and YAML as int.
			if got := fmt.Sprint(section["read_chunk_size"]); got != "512" {
				t.Errorf("read_chunk_size = %v, want 512", got)
			}
		})
	}
}

func TestFileLoaderMissingFile(t *testing.T) {
	for _, f := range []Format{TOML, YAML} {
		data, err := NewFile(MemFS{}, "missing."+f.Name, f).Load()
		if err != nil {
			t.Errorf("%s: Load of missing file error: %v", f.Name, err)
		}
		if data != nil {
			t.Errorf("%s: Load of missing file = %v, want nil", f.Name, data)
		}
	}
}

func TestFileLoaderParseErrors(t *testing.T) {
	_, err := NewFile(OS, "x", TOML).LoadReader(strings.NewReader("[process\nbroken"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("TOML error = %v, want *ParseError", err)
	}
	if perr.Path != "<reader>" {
		t.Errorf("perr.Path = %q, want <reader>", perr.Path)
	}
	if perr.Line <= 0 {
		t.Errorf("perr.Line = %d, want > 0", perr.Line)
	}

	_, err = NewFile(OS, "x", YAML).LoadReader(strings.NewReader("process:\n  a: b: c\n"))
	if !errors.As(err, &perr) {
		t.Fatalf("YAML error = %v, want *ParseError", err)
	}
	if !strings.Contains(perr.Error(), "parse error in <reader>") {
		t.Errorf("perr.Error() = %q, want it to name <reader>", perr.Error())
	}
	if perr.Line <= 0 {
		t.Errorf("perr.Line = %d, want > 0", perr.Line)
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"log":     map[string]any{"level": "info", "format": "text"},
		"process": map[string]any{"pty_cols": 80},
	}
	src := map[string]any{
		"log":    map[string]any{"level": "debug"},
		"script": map[string]any{"timeout": "1s"},
	}

	want := map[string]any{
		"log":     map[string]any{"level": "debug", "format": "text"},
		"process": map[string]any{"pty_cols": 80},
		"script":  map[string]any{"timeout": "1s"},
	}
	if got := DeepMerge(dst, src); !reflect.DeepEqual(got, want) {
		t.Errorf("DeepMerge() = %v, want %v", got, want)
	}

	if got := DeepMerge(nil, map[string]any{"a": 1}); !reflect.DeepEqual(got, map[string]any{"a": 1}) {
		t.Errorf("DeepMerge(nil, src) = %v, want map[a:1]", got)
	}
}
