// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvStorePath = "BANDITLAB_STORE_PATH"
	EnvLogLevel  = "BANDITLAB_LOG_LEVEL"
	EnvSeed      = "BANDITLAB_SEED"
)

// ErrInvalidConfig wraps every load failure caused by config contents.
var ErrInvalidConfig = errors.New("invalid banditlab config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the config at path.
//
// Description:
//
//	A missing file yields DefaultConfig. When create is true the defaults
//	are also written to path so the user has a file to edit. Fields the
//	file leaves out keep their default values. Environment overrides are
//	applied last, then the result is validated.
//
// Outputs:
//   - BanditConfig: The effective configuration.
//   - error: I/O failures, or ErrInvalidConfig for bad YAML, bad env values
//     or failed validation.
func Load(path string, create bool) (BanditConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if create {
			if err := createDefault(path); err != nil {
				return cfg, err
			}
		}
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c *BanditConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func applyEnv(cfg *BanditConfig) error {
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
		cfg.Store.Enabled = true
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an unsigned integer", ErrInvalidConfig, EnvSeed, v)
		}
		cfg.Simulation.Seed = &seed
	}
	return nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
