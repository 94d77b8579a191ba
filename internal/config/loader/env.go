package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvVar maps one environment variable onto a config path.
type EnvVar struct {
	Path string
	// List splits the value on commas into a list.
	List bool
}

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string
	mapping map[string]EnvVar
}

// NewEnvLoader creates a loader for the given mapping. Variables starting
// with prefix but absent from the mapping are converted by name, so
// LUAPROC_PROCESS_READ_CHUNK_SIZE becomes process.read_chunk_size.
func NewEnvLoader(prefix string, mapping map[string]EnvVar) *EnvLoader {
	return &EnvLoader{prefix: prefix, mapping: mapping}
}

// Load reads environment variables and returns a configuration map.
// Empty values count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for env, v := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, v.Path, l.value(v, val))
		}
	}

	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		setByPath(config, l.envToPath(name), parseValue(value))
	}

	return config, nil
}

func (l *EnvLoader) value(v EnvVar, raw string) any {
	if !v.List {
		return parseValue(raw)
	}
	items := []any{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// envToPath converts PREFIX_SECTION_SOME_KEY to section.some_key.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + key
}

// parseValue converts integers and booleans; everything else, durations
// included, stays a string for the decoder.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
