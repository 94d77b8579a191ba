package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dshills/luaproc/internal/config/loader"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LUAPROC_"

// EnvMapping lists the documented environment overrides.
var EnvMapping = map[string]loader.EnvVar{
	"LUAPROC_LOG_LEVEL":              {Path: "log.level"},
	"LUAPROC_LOG_FORMAT":             {Path: "log.format"},
	"LUAPROC_PROCESS_GRACE_PERIOD":   {Path: "process.grace_period"},
	"LUAPROC_PROCESS_DRAIN_INTERVAL": {Path: "process.drain_interval"},
	"LUAPROC_SCRIPT_CAPABILITIES":    {Path: "script.capabilities", List: true},
	"LUAPROC_SCRIPT_TIMEOUT":         {Path: "script.timeout"},
}

var sections = map[string]bool{"log": true, "process": true, "script": true}

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	return LoadWithFS(loader.OS, path)
}

// LoadWithFS is Load reading the file through fsys.
func LoadWithFS(fsys loader.FileSystem, path string) (*Config, error) {
	var layers []map[string]any

	if path != "" {
		fl, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		data, err := fl.Load()
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		layers = append(layers, data)
	}

	env, err := loader.NewEnvLoader(EnvPrefix, EnvMapping).Load()
	if err != nil {
		return nil, err
	}
	// Other LUAPROC_* variables, LUAPROC_CONFIG among them, are not settings.
	for key := range env {
		if !sections[key] {
			delete(env, key)
		}
	}
	layers = append(layers, env)

	cfg, err := decode(layers...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode merges the layers and decodes them over the defaults. The merged
// map is re-encoded as YAML so both file formats share one decoder.
func decode(layers ...map[string]any) (*Config, error) {
	merged := map[string]any{}
	for _, l := range layers {
		merged = loader.DeepMerge(merged, l)
	}

	cfg := Default()
	if len(merged) == 0 {
		return cfg, nil
	}

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return cfg, nil
}
