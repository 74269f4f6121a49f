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

// Package checkpoint captures durable snapshots of run state and
// conversation memory so a run can be rolled back or resumed.
//
// A Manager keeps an in-memory index of checkpoints capped at a maximum
// count and persists each one through a Store. Checkpoints own independent
// copies of the state and memory they were given: mutating the live values
// after Save never changes what Restore returns.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/steadfast/pkg/schema"
)

// DefaultDescription is used when Save is given an empty description.
const DefaultDescription = "Auto-saved checkpoint"

const idPrefix = "checkpoint_"

// Checkpoint is a saved snapshot of state and optional memory.
type Checkpoint struct {
	ID          string
	Timestamp   time.Time
	State       map[string]any
	Memory      *schema.Memory
	Description string
}

// Info is the listing form of a checkpoint.
type Info struct {
	ID          string         `json:"checkpoint_id"`
	Timestamp   time.Time      `json:"timestamp"`
	State       map[string]any `json:"state"`
	Description string         `json:"description"`
	HasMemory   bool           `json:"has_memory"`
}

// document is the persisted JSON shape of a checkpoint.
type document struct {
	ID             string           `json:"checkpoint_id"`
	Timestamp      time.Time        `json:"timestamp"`
	State          map[string]any   `json:"state"`
	Description    string           `json:"description"`
	HasMemory      bool             `json:"has_memory"`
	MemoryMessages []schema.Message `json:"memory_messages,omitempty"`
}

// NewID returns an identifier of the form checkpoint_YYYYmmdd_HHMMSS_<8 hex>.
func NewID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + now.Format("20060102_150405") + "_" + hex[:8]
}

// Info returns the listing form of the checkpoint.
func (c *Checkpoint) Info() Info {
	return Info{
		ID:          c.ID,
		Timestamp:   c.Timestamp,
		State:       copyState(c.State),
		Description: c.Description,
		HasMemory:   c.Memory != nil,
	}
}

// MarshalJSON encodes the checkpoint in its persisted form.
func (c *Checkpoint) MarshalJSON() ([]byte, error) {
	doc := document{
		ID:          c.ID,
		Timestamp:   c.Timestamp,
		State:       c.State,
		Description: c.Description,
		HasMemory:   c.Memory != nil,
	}
	if doc.State == nil {
		doc.State = map[string]any{}
	}
	if c.Memory != nil {
		doc.MemoryMessages = c.Memory.Messages
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the persisted form.
func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("checkpoint_id is required")
	}
	*c = Checkpoint{
		ID:          doc.ID,
		Timestamp:   doc.Timestamp,
		State:       doc.State,
		Description: doc.Description,
	}
	if doc.HasMemory {
		c.Memory = schema.NewMemory(max(schema.DefaultMaxMessages, len(doc.MemoryMessages)))
		c.Memory.AddAll(doc.MemoryMessages...)
	}
	return nil
}

// clone returns a checkpoint that shares nothing mutable with c.
func (c *Checkpoint) clone() *Checkpoint {
	return &Checkpoint{
		ID:          c.ID,
		Timestamp:   c.Timestamp,
		State:       copyState(c.State),
		Memory:      c.Memory.Clone(),
		Description: c.Description,
	}
}
