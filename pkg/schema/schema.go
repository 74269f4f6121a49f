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

// Package schema holds the conversation types shared by checkpoints,
// history and the agent loop.
package schema

import "slices"

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Function is the function part of a tool call.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Message is one conversation turn.
type Message struct {
	Role        Role       `json:"role"`
	Content     string     `json:"content,omitempty"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	Name        string     `json:"name,omitempty"`
	ToolCallID  string     `json:"tool_call_id,omitempty"`
	Base64Image string     `json:"base64_image,omitempty"`
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage creates a tool result message.
func ToolMessage(content, name, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: toolCallID}
}

// ToMap returns the wire form of the message, omitting empty fields.
func (m Message) ToMap() map[string]any {
	out := map[string]any{"role": string(m.Role)}
	if m.Content != "" {
		out["content"] = m.Content
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, map[string]any{
				"id":   tc.ID,
				"type": tc.Type,
				"function": map[string]any{
					"name":      tc.Function.Name,
					"arguments": tc.Function.Arguments,
				},
			})
		}
		out["tool_calls"] = calls
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	if m.Base64Image != "" {
		out["base64_image"] = m.Base64Image
	}
	return out
}

// DefaultMaxMessages bounds a Memory when no limit is given.
const DefaultMaxMessages = 100

// Memory is an ordered, bounded conversation history.
type Memory struct {
	Messages    []Message `json:"messages"`
	MaxMessages int       `json:"max_messages"`
}

// NewMemory creates an empty memory holding at most maxMessages.
func NewMemory(maxMessages int) *Memory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Memory{MaxMessages: maxMessages}
}

// Add appends a message, dropping the oldest past the limit.
func (m *Memory) Add(msg Message) {
	m.AddAll(msg)
}

// AddAll appends messages, dropping the oldest past the limit.
func (m *Memory) AddAll(msgs ...Message) {
	m.Messages = append(m.Messages, msgs...)
	if m.MaxMessages > 0 && len(m.Messages) > m.MaxMessages {
		m.Messages = slices.Clone(m.Messages[len(m.Messages)-m.MaxMessages:])
	}
}

// Clear removes all messages.
func (m *Memory) Clear() {
	m.Messages = nil
}

// Recent returns the last n messages.
func (m *Memory) Recent(n int) []Message {
	if n >= len(m.Messages) {
		return slices.Clone(m.Messages)
	}
	return slices.Clone(m.Messages[len(m.Messages)-n:])
}

// Len returns the number of messages.
func (m *Memory) Len() int {
	return len(m.Messages)
}

// Clone returns a deep copy; later changes to either side are not shared.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	out := &Memory{MaxMessages: m.MaxMessages}
	if m.Messages != nil {
		out.Messages = make([]Message, len(m.Messages))
		for i, msg := range m.Messages {
			msg.ToolCalls = slices.Clone(msg.ToolCalls)
			out.Messages[i] = msg
		}
	}
	return out
}
