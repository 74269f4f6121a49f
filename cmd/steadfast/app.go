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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
	"github.com/kadirpekel/steadfast/pkg/config"
	"github.com/kadirpekel/steadfast/pkg/history"
	"github.com/kadirpekel/steadfast/pkg/logger"
)

// DefaultConfigFile is loaded when present and no --config is given.
const DefaultConfigFile = "steadfast.yaml"

// app bundles what every command needs after startup.
type app struct {
	cfg     *config.Config
	loader  *config.Loader
	cleanup []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// setup loads the configuration and initializes logging.
func (cli *CLI) setup(ctx context.Context) (*app, error) {
	a := &app{}

	path := cli.Config
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		cfg, loader, err := config.LoadConfigFile(ctx, path)
		if err != nil {
			return nil, err
		}
		a.cfg, a.loader = cfg, loader
		a.cleanup = append(a.cleanup, func() { _ = loader.Close() })
	} else {
		a.cfg = config.Default()
	}

	if cli.Workspace != "" {
		applyWorkspace(a.cfg, cli.Workspace)
	}

	cleanup, err := initLogger(cli, &a.cfg.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cleanup != nil {
		a.cleanup = append(a.cleanup, cleanup)
	}

	slog.Debug("Configuration loaded", "path", path, "workspace", a.cfg.Workspace)
	return a, nil
}

// applyWorkspace moves workspace-relative defaults along with the workspace.
func applyWorkspace(cfg *config.Config, workspace string) {
	if cfg.Checkpoint.Dir == filepath.Join(cfg.Workspace, "checkpoints") {
		cfg.Checkpoint.Dir = filepath.Join(workspace, "checkpoints")
	}
	cfg.Workspace = workspace
}

// initLogger resolves logging settings with the priority
// flag > environment > config > default.
func initLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	levelStr := config.FirstNonEmpty(cli.LogLevel, os.Getenv(config.EnvLogLevel), cfg.Level, "info")
	file := config.FirstNonEmpty(cli.LogFile, os.Getenv(config.EnvLogFile), cfg.File)
	format := config.FirstNonEmpty(cli.LogFormat, os.Getenv(config.EnvLogFormat), cfg.Format, logger.FormatSimple)

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = f, closeFn
	}

	logger.Init(level, output, format)
	return cleanup, nil
}

// openCheckpoints builds the checkpoint manager for the configured backend.
// It returns nil when checkpointing is disabled.
func (a *app) openCheckpoints(ctx context.Context) (*checkpoint.Manager, error) {
	cfg := a.cfg.Checkpoint
	if !cfg.IsEnabled() {
		return nil, nil
	}
	opts := []checkpoint.Option{checkpoint.WithMaxCheckpoints(cfg.MaxCheckpoints)}

	if cfg.Backend != checkpoint.BackendSQL {
		return checkpoint.NewFileManager(ctx, cfg.Dir, opts...)
	}

	pool := config.NewDBPool()
	a.cleanup = append(a.cleanup, func() { _ = pool.Close() })

	db, err := pool.Get(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.NewSQLStore(ctx, db, a.cfg.Database.Dialect())
	if err != nil {
		return nil, err
	}
	return checkpoint.NewManager(ctx, store, opts...)
}

func (a *app) requireCheckpoints(ctx context.Context) (*checkpoint.Manager, error) {
	mgr, err := a.openCheckpoints(ctx)
	if err != nil {
		return nil, err
	}
	if mgr == nil {
		return nil, errors.New("checkpoints are disabled in the configuration")
	}
	return mgr, nil
}

func (a *app) openHistory() (*history.Manager, error) {
	if !a.cfg.History.IsEnabled() {
		return nil, errors.New("history is disabled in the configuration")
	}
	return history.NewManager(a.cfg.Workspace, &a.cfg.History)
}
