package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "CURLMETRICS_"
	envConfigPath = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, an optional YAML file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file at path, or at $CURLMETRICS_CONFIG when path is empty
//  3. env (prefix CURLMETRICS_, "__" separates nested keys)
func Load(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
		}
	}

	// CURLMETRICS_GEOMETRY__HOUSE_RADIUS -> geometry.house_radius
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	resetOverridden(k, cfg)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resetOverridden clears default slices and maps that the loaded layers set,
// so a shorter list from the file replaces the default instead of being
// merged into it element by element.
func resetOverridden(k *koanf.Koanf, cfg *Config) {
	if k.Exists("timing.buckets") || k.Exists("timing.preset") {
		cfg.Timing = Timing{}
	}
	if k.Exists("indices.csi_profiles") {
		cfg.Indices.CSIProfiles = nil
	}
	resets := map[string]func(){
		"context.buckets":      func() { cfg.Context.Buckets = nil },
		"indices.traffic":      func() { cfg.Indices.Traffic = nil },
		"indices.corridor":     func() { cfg.Indices.Corridor = nil },
		"indices.house":        func() { cfg.Indices.House = nil },
		"aggregation.at_least": func() { cfg.Aggregation.AtLeast = nil },
		"aggregation.exactly":  func() { cfg.Aggregation.Exactly = nil },
		"groups.targets":       func() { cfg.Groups.Targets = nil },
	}
	for key, reset := range resets {
		if k.Exists(key) {
			reset()
		}
	}
}
