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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AddTrimsOldest(t *testing.T) {
	m := NewMemory(2)
	m.Add(UserMessage("one"))
	m.Add(AssistantMessage("two"))
	m.Add(UserMessage("three"))

	require.Equal(t, 2, m.Len())
	assert.Equal(t, "two", m.Messages[0].Content)
	assert.Equal(t, "three", m.Messages[1].Content)
	assert.Equal(t, []Message{UserMessage("three")}, m.Recent(1))
	assert.Len(t, m.Recent(10), 2)

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestMemory_CloneIsIndependent(t *testing.T) {
	m := NewMemory(0)
	m.Add(Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "1", Type: "function", Function: Function{Name: "terminate"}}},
	})

	c := m.Clone()
	m.Messages[0].ToolCalls[0].Function.Name = "changed"
	m.Add(UserMessage("later"))

	assert.Equal(t, "terminate", c.Messages[0].ToolCalls[0].Function.Name)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, DefaultMaxMessages, c.MaxMessages)

	var nilMemory *Memory
	assert.Nil(t, nilMemory.Clone())
}

func TestMessage_ToMap(t *testing.T) {
	m := ToolMessage("42", "calc", "call-1").ToMap()
	assert.Equal(t, map[string]any{
		"role":         "tool",
		"content":      "42",
		"name":         "calc",
		"tool_call_id": "call-1",
	}, m)

	withCalls := Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "x", Type: "function", Function: Function{Name: "f", Arguments: "{}"}}},
	}.ToMap()
	calls, ok := withCalls["tool_calls"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", calls[0]["id"])
	assert.NotContains(t, withCalls, "content")
}
