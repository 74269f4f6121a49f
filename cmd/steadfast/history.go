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
	"strings"

	"github.com/kadirpekel/steadfast/pkg/history"
)

// HistoryCmd manages saved conversation sessions.
type HistoryCmd struct {
	List    HistoryListCmd    `cmd:"" default:"1" help:"List saved sessions."`
	Show    HistoryShowCmd    `cmd:"" help:"Show a session's messages."`
	Delete  HistoryDeleteCmd  `cmd:"" help:"Delete a session."`
	Cleanup HistoryCleanupCmd `cmd:"" help:"Delete sessions older than the retention window."`
}

// HistoryListCmd lists sessions.
type HistoryListCmd struct {
	Limit int  `help:"Maximum sessions to show." default:"20"`
	JSON  bool `help:"Print raw JSON."`
}

func (c *HistoryListCmd) Run(cli *CLI) error {
	mgr, closeFn, err := cli.history()
	if err != nil {
		return err
	}
	defer closeFn()

	sessions, err := mgr.List(c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(sessions)
	}
	fmt.Print(history.FormatSessionList(sessions))
	return nil
}

// HistoryShowCmd prints a session.
type HistoryShowCmd struct {
	ID   string `arg:"" help:"Session ID."`
	JSON bool   `help:"Print raw JSON."`
}

func (c *HistoryShowCmd) Run(cli *CLI) error {
	mgr, closeFn, err := cli.history()
	if err != nil {
		return err
	}
	defer closeFn()

	session, err := mgr.Get(c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(session)
	}

	md := session.Metadata
	fmt.Printf("Session %s (%s, %d messages)\n", md.SessionID, md.AgentName, md.MessageCount)
	if md.TaskSummary != "" {
		fmt.Printf("Task: %s\n", md.TaskSummary)
	}
	fmt.Println()
	for _, msg := range session.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" && len(msg.ToolCalls) > 0 {
			names := make([]string, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				names = append(names, call.Function.Name)
			}
			content = "[tool calls: " + strings.Join(names, ", ") + "]"
		}
		fmt.Printf("[%s] %s\n", msg.Role, content)
	}
	return nil
}

// HistoryDeleteCmd removes a session.
type HistoryDeleteCmd struct {
	ID string `arg:"" help:"Session ID."`
}

func (c *HistoryDeleteCmd) Run(cli *CLI) error {
	mgr, closeFn, err := cli.history()
	if err != nil {
		return err
	}
	defer closeFn()

	ok, err := mgr.Delete(c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", history.ErrNotFound, c.ID)
	}
	fmt.Printf("Deleted session %s\n", c.ID)
	return nil
}

// HistoryCleanupCmd removes expired sessions.
type HistoryCleanupCmd struct {
	Days int `help:"Retention in days (defaults to the configured value)."`
}

func (c *HistoryCleanupCmd) Run(cli *CLI) error {
	mgr, closeFn, err := cli.history()
	if err != nil {
		return err
	}
	defer closeFn()

	deleted, err := mgr.Cleanup(c.Days)
	if err != nil {
		return err
	}
	fmt.Print(history.FormatCleanupResult(deleted))
	return nil
}

func (cli *CLI) history() (*history.Manager, func(), error) {
	a, err := cli.setup(context.Background())
	if err != nil {
		return nil, nil, err
	}
	mgr, err := a.openHistory()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return mgr, a.Close, nil
}
