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

// Command steadfast runs YAML tasks with retries, progress reporting,
// checkpoints and graceful interruption.
//
// Usage:
//
//	steadfast run task.yaml
//	steadfast run task.yaml --resume
//	steadfast checkpoints list
//	steadfast diagnose "connection refused"
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/steadfast"
	"github.com/kadirpekel/steadfast/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Run         RunCmd         `cmd:"" help:"Run a task file."`
	Resume      ResumeCmd      `cmd:"" help:"Inspect or clear the interrupted-run state."`
	Checkpoints CheckpointsCmd `cmd:"" help:"Manage checkpoints."`
	History     HistoryCmd     `cmd:"" help:"Manage conversation history."`
	Diagnose    DiagnoseCmd    `cmd:"" help:"Classify an error message and suggest fixes."`
	Schema      SchemaCmd      `cmd:"" help:"Print the JSON Schema of the config or task file."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"STEADFAST_CONFIG"`
	Workspace string `short:"w" help:"Workspace directory (overrides config)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, pretty, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(steadfast.GetVersion())
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("steadfast"),
		kong.Description("Resilient task runner with retries, checkpoints and progress tracking"),
		kong.UsageOnError(),
	)

	if err := config.LoadDotEnvForConfig(cli.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
