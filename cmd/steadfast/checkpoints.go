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
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
)

// CheckpointsCmd manages saved checkpoints.
type CheckpointsCmd struct {
	List     CheckpointsListCmd     `cmd:"" default:"1" help:"List checkpoints, newest first."`
	Show     CheckpointsShowCmd     `cmd:"" help:"Show one checkpoint."`
	Delete   CheckpointsDeleteCmd   `cmd:"" help:"Delete a checkpoint."`
	Rollback CheckpointsRollbackCmd `cmd:"" help:"Print the state of the latest checkpoint."`
}

// CheckpointsListCmd lists checkpoints.
type CheckpointsListCmd struct {
	JSON bool `help:"Print raw JSON."`
}

func (c *CheckpointsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := cli.setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.requireCheckpoints(ctx)
	if err != nil {
		return err
	}
	infos := mgr.List()
	if c.JSON {
		return printJSON(infos)
	}
	if len(infos) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSAVED\tMEMORY\tDESCRIPTION")
	for _, info := range infos {
		mem := "-"
		if info.HasMemory {
			mem = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Timestamp.Format(time.RFC3339), mem, info.Description)
	}
	return w.Flush()
}

// CheckpointsShowCmd prints a checkpoint as JSON.
type CheckpointsShowCmd struct {
	ID string `arg:"" help:"Checkpoint ID."`
}

func (c *CheckpointsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := cli.setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.requireCheckpoints(ctx)
	if err != nil {
		return err
	}
	cp, err := mgr.Get(c.ID)
	if err != nil {
		return err
	}
	return printJSON(checkpointView(cp))
}

// CheckpointsDeleteCmd removes a checkpoint.
type CheckpointsDeleteCmd struct {
	ID string `arg:"" help:"Checkpoint ID."`
}

func (c *CheckpointsDeleteCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := cli.setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.requireCheckpoints(ctx)
	if err != nil {
		return err
	}
	ok, err := mgr.Delete(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", checkpoint.ErrNotFound, c.ID)
	}
	fmt.Printf("Deleted checkpoint %s\n", c.ID)
	return nil
}

// CheckpointsRollbackCmd restores the newest checkpoint and prints it.
type CheckpointsRollbackCmd struct{}

func (c *CheckpointsRollbackCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := cli.setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.requireCheckpoints(ctx)
	if err != nil {
		return err
	}
	state, memory, err := mgr.RollbackToLatest()
	if err != nil {
		return err
	}
	out := map[string]any{"state": state}
	if memory != nil {
		out["messages"] = memory.Messages
	}
	return printJSON(out)
}

func checkpointView(cp *checkpoint.Checkpoint) map[string]any {
	out := map[string]any{
		"checkpoint_id": cp.ID,
		"timestamp":     cp.Timestamp,
		"description":   cp.Description,
		"state":         cp.State,
	}
	if cp.Memory != nil {
		out["messages"] = cp.Memory.Messages
	}
	return out
}
