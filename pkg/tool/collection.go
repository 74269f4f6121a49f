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

package tool

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Collection dispatches calls to tools by name.
type Collection struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewCollection creates a collection holding tools.
func NewCollection(tools ...Tool) *Collection {
	c := &Collection{tools: make(map[string]Tool)}
	for _, t := range tools {
		c.Add(t)
	}
	return c
}

// Add registers a tool. A tool with the same name is skipped with a warning.
func (c *Collection) Add(t Tool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := t.Name()
	if _, exists := c.tools[name]; exists {
		slog.Warn("Tool already registered, skipping", "tool", name)
		return false
	}
	c.tools[name] = t
	c.order = append(c.order, name)
	return true
}

// Get returns a tool by name.
func (c *Collection) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (c *Collection) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Len returns the number of tools.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Params returns the function-calling description of every tool.
func (c *Collection) Params() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]map[string]any, 0, len(c.order))
	for _, name := range c.order {
		t := c.tools[name]
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  t.Parameters(),
			},
		})
	}
	return out
}

// Execute runs the named tool. Unknown tools and tool errors are returned
// as failure results rather than errors.
func (c *Collection) Execute(ctx context.Context, name string, args map[string]any) *Result {
	t, ok := c.Get(name)
	if !ok {
		return Failure(fmt.Sprintf("Tool %s is invalid", name))
	}
	result, err := t.Execute(ctx, args)
	if err != nil {
		return Failure(err.Error())
	}
	if result == nil {
		return Success("")
	}
	return result
}
