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

package history

import (
	"fmt"
	"strings"
)

const tableWidth = 100

// FormatSessionList renders sessions as a terminal table.
func FormatSessionList(sessions []Metadata) string {
	if len(sessions) == 0 {
		return "No saved sessions found."
	}

	rule := strings.Repeat("=", tableWidth)
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("Available Conversation Sessions\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-35s %-12s %-10s %-20s %s\n", "Session ID", "Agent", "Messages", "Created", "Task")
	b.WriteString(strings.Repeat("-", tableWidth) + "\n")

	for _, s := range sessions {
		task := s.TaskSummary
		if task == "" {
			task = "(No task summary)"
		}
		if r := []rune(task); len(r) > 30 {
			task = string(r[:27]) + "..."
		}
		fmt.Fprintf(&b, "%-35s %-12s %-10d %-20s %s\n",
			s.SessionID, s.AgentName, s.MessageCount, s.CreatedAt.Format("2006-01-02 15:04:05"), task)
	}

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Total: %d session(s)", len(sessions))
	return b.String()
}

// FormatCleanupResult describes how many sessions Cleanup removed.
func FormatCleanupResult(deleted int) string {
	switch deleted {
	case 0:
		return "No old sessions to clean up."
	case 1:
		return "[OK] Cleaned up 1 old session."
	default:
		return fmt.Sprintf("[OK] Cleaned up %d old sessions.", deleted)
	}
}
