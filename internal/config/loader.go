package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// defaultConfigFile is the conventional config file name within a config
// directory, mirroring the teacher's pkg/config/loader.go convention.
const defaultConfigFile = "config.yaml"

// environOverrideEnvVar names the environment whose optional overlay file
// (config.<env>.yaml) is merged on top of the base file, same two-layer
// shape as the teacher's builtin+user merge but keyed by deployment
// environment instead of builtin-vs-user.
const environOverrideEnvVar = "MISSIONCTL_ENV"

// Initialize loads, expands, parses, defaults and validates the
// configuration rooted at configDir. It follows the teacher's
// load -> expand-env -> parse -> merge-defaults -> validate pipeline
// shape exactly, scoped to this spec's config sections.
func Initialize(configDir string) (*Config, error) {
	cfg := Config{configDir: configDir}

	if err := loadFileInto(&cfg, filepath.Join(configDir, defaultConfigFile)); err != nil {
		return nil, err
	}

	if env := os.Getenv(environOverrideEnvVar); env != "" {
		overlayPath := filepath.Join(configDir, fmt.Sprintf("config.%s.yaml", env))
		var overlay Config
		if err := loadFileInto(&overlay, overlayPath); err != nil {
			return nil, err
		}
		if err := mergo.Merge(&cfg, overlay, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging %s environment overlay: %w", env, err)
		}
	}

	cfg.configDir = configDir
	applyDefaults(&cfg)

	if err := NewValidator(&cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFileInto reads, env-expands and YAML-parses path into cfg. A missing
// file is tolerated; applyDefaults fills the gap and validation catches
// anything still required but absent.
func loadFileInto(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	expanded := expandEnv(raw)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
