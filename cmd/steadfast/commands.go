// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kadirpekel/steadfast/pkg/progress/display"
	"github.com/kadirpekel/steadfast/pkg/recovery"
	"github.com/kadirpekel/steadfast/pkg/shutdown"
)

// ResumeCmd inspects the interrupted-run state.
type ResumeCmd struct {
	Show  ResumeShowCmd  `cmd:"" default:"1" help:"Show the interrupted state."`
	Clear ResumeClearCmd `cmd:"" help:"Discard the interrupted state."`
}

// ResumeShowCmd prints the interrupted state.
type ResumeShowCmd struct {
	JSON bool `help:"Print raw JSON."`
}

func (c *ResumeShowCmd) Run(cli *CLI) error {
	a, err := cli.setup(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := shutdown.LoadState(a.cfg.Workspace)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Println("No interrupted run to resume.")
		return nil
	}
	if c.JSON {
		return printJSON(st)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Task:\t%s\n", st.Description)
	fmt.Fprintf(w, "Interrupted:\t%s\n", st.InterruptedAt.Format(time.RFC3339))
	if st.TotalSteps != nil {
		fmt.Fprintf(w, "Progress:\t%d/%d steps\n", st.CurrentStep, *st.TotalSteps)
	} else {
		fmt.Fprintf(w, "Progress:\t%d steps\n", st.CurrentStep)
	}
	fmt.Fprintf(w, "Ran for:\t%s\n", display.FormatDuration(time.Duration(st.Duration*float64(time.Second))))
	if st.LastMessage != "" {
		fmt.Fprintf(w, "Last message:\t%s\n", st.LastMessage)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nRe-run the task with --resume to continue.\n")
	return nil
}

// ResumeClearCmd removes the interrupted state.
type ResumeClearCmd struct{}

func (c *ResumeClearCmd) Run(cli *CLI) error {
	a, err := cli.setup(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := shutdown.ClearState(a.cfg.Workspace); err != nil {
		return err
	}
	fmt.Println("Interrupted state cleared.")
	return nil
}

// DiagnoseCmd classifies an error message.
type DiagnoseCmd struct {
	Message []string `arg:"" help:"Error message to diagnose."`
	JSON    bool     `help:"Print the diagnosis as JSON."`
}

func (c *DiagnoseCmd) Run() error {
	diag := recovery.Diagnose(diagnosedError(c.Message))
	if c.JSON {
		return printJSON(diag)
	}
	fmt.Print(diag.Format())
	return nil
}

// SchemaCmd prints JSON Schemas.
type SchemaCmd struct {
	Task    bool `help:"Print the task file schema instead of the config schema."`
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	schema := configSchema()
	if c.Task {
		schema = taskSchema()
	}

	enc := json.NewEncoder(os.Stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
