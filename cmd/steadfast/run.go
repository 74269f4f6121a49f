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
	"strings"

	"github.com/oklog/run"

	"github.com/kadirpekel/steadfast/pkg/config"
	"github.com/kadirpekel/steadfast/pkg/observability"
	"github.com/kadirpekel/steadfast/pkg/progress"
	"github.com/kadirpekel/steadfast/pkg/progress/display"
	"github.com/kadirpekel/steadfast/pkg/recovery"
	"github.com/kadirpekel/steadfast/pkg/runner"
	"github.com/kadirpekel/steadfast/pkg/shutdown"
)

// RunCmd runs a task file.
type RunCmd struct {
	Task       string `arg:"" help:"Path to the task file." type:"existingfile"`
	Resume     bool   `help:"Skip steps completed by an interrupted or failed run."`
	NoProgress bool   `name:"no-progress" help:"Disable progress output."`
	Style      string `help:"Progress style (auto, rich, simple, minimal)."`
	Watch      bool   `help:"Reload the config file on change and log the effective settings."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := cli.setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	task, err := runner.LoadTask(ctx, c.Task)
	if err != nil {
		return err
	}

	strategy, err := cfg.Retry.Strategy()
	if err != nil {
		return err
	}
	retry := recovery.NewHandler(recovery.WithDefaultStrategy(strategy))

	checkpoints, err := a.openCheckpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to open checkpoints: %w", err)
	}

	bus := progress.DefaultBus()
	if c.Style != "" {
		if _, ok := display.ParseStyle(c.Style); !ok {
			return fmt.Errorf("invalid progress style %q", c.Style)
		}
		cfg.Progress.Style = c.Style
	}
	if cfg.Progress.IsEnabled() && !c.NoProgress {
		h := display.NewHandler(display.New(os.Stderr, cfg.Progress.DisplayOptions()...))
		h.Attach(bus)
		defer h.Close()
	}

	obs := observability.NewManager(cfg.Observability, os.Stderr)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()
	recorder := observability.NewRecorderFromManager(obs)
	recorder.Attach(bus)
	defer recorder.Detach()

	sh := shutdown.New(
		shutdown.WithWorkspace(cfg.Workspace),
		shutdown.WithSaveState(cfg.Shutdown.ShouldSaveState()),
	)
	defer sh.Restore()

	r, err := runner.New(runner.Config{
		Workspace:   cfg.Workspace,
		Retry:       retry,
		Checkpoints: checkpoints,
		Shutdown:    sh,
		OnRetry:     observability.RetryObserver(obs.Metrics()),
	})
	if err != nil {
		return err
	}

	var (
		g      run.Group
		result *runner.Result
		runErr error
	)

	// Task execution. Its completion stops every other actor.
	{
		runCtx, runCancel := context.WithCancel(ctx)
		g.Add(func() error {
			result, runErr = r.Run(runCtx, task, runner.RunOptions{Resume: c.Resume})
			return runErr
		}, func(error) {
			runCancel()
		})
	}

	if cfg.Observability.Server.Enabled {
		srvCtx, srvCancel := context.WithCancel(ctx)
		srv := observability.NewServer(cfg.Observability.Server.Address, obs, recorder)
		g.Add(func() error {
			return srv.Serve(srvCtx)
		}, func(error) {
			srvCancel()
		})
	}

	if c.Watch && a.loader != nil {
		watchCtx, watchCancel := context.WithCancel(ctx)
		loader := config.NewLoader(a.loader.Provider(), config.WithOnChange(func(next *config.Config) {
			slog.Info("Configuration changed; it applies to the next run",
				"retry_preset", next.Retry.Preset,
				"max_checkpoints", next.Checkpoint.MaxCheckpoints)
		}))
		g.Add(func() error {
			if err := loader.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}, func(error) {
			watchCancel()
		})
	}

	_ = g.Run()
	printSummary(result, runErr)
	return runErr
}

func printSummary(result *runner.Result, err error) {
	if result == nil {
		return
	}
	if err != nil && len(result.Failed) > 0 {
		last := result.Failed[len(result.Failed)-1]
		fmt.Fprint(os.Stderr, recovery.Diagnose(last.Err).Format())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nTask %s finished in %s: %d completed", result.Task,
		display.FormatDuration(result.Duration), len(result.Completed))
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped", len(result.Skipped))
	}
	if len(result.Failed) > 0 {
		names := make([]string, len(result.Failed))
		for i, f := range result.Failed {
			names[i] = f.Name
		}
		fmt.Fprintf(&b, ", %d failed (%s)", len(result.Failed), strings.Join(names, ", "))
	}
	fmt.Fprintln(os.Stderr, b.String())
}
