// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by the CLI.
const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFile   = "LOG_FILE"
	EnvLogFormat = "LOG_FORMAT"
	EnvConfig    = "STEADFAST_CONFIG"
)

// LoadDotEnv loads variables from .env files without overwriting ones
// already set.
//
// Search order:
//  1. explicit paths
//  2. .env in the current directory
//  3. ~/.env
func LoadDotEnv(paths ...string) error {
	candidates := make([]string, 0, len(paths)+2)
	for _, p := range paths {
		if p != "" {
			candidates = append(candidates, p)
		}
	}
	candidates = append(candidates, ".env")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".env"))
	}

	for _, path := range candidates {
		if err := loadIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadDotEnvForConfig loads the .env next to the config file first.
func LoadDotEnvForConfig(configPath string) error {
	if configPath == "" {
		return LoadDotEnv()
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return LoadDotEnv()
	}
	return LoadDotEnv(filepath.Join(filepath.Dir(absPath), ".env"))
}

func loadIfExists(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		slog.Debug("Failed to load .env file", "path", path, "error", err)
		return nil
	}
	slog.Debug("Loaded environment from .env", "path", path)
	return nil
}

// FirstNonEmpty returns the first non-empty value.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
