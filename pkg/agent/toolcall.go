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

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/steadfast/pkg/progress"
	"github.com/kadirpekel/steadfast/pkg/schema"
	"github.com/kadirpekel/steadfast/pkg/tool"
)

// ToolChoice controls whether the model may, must or must not call tools.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// ErrToolCallsRequired is returned by Act when the required tool choice
// produced no tool calls.
var ErrToolCallsRequired = errors.New("tool calls required but none provided")

// ToolRequest is one model call with tools.
type ToolRequest struct {
	System     []schema.Message
	Messages   []schema.Message
	Tools      []map[string]any
	ToolChoice ToolChoice
}

// ToolResponse is the model reply.
type ToolResponse struct {
	Content   string
	ToolCalls []schema.ToolCall
}

// Model asks a language model for the next message.
type Model interface {
	AskTool(ctx context.Context, req ToolRequest) (*ToolResponse, error)
}

// ToolCallOption configures a ToolCallAgent.
type ToolCallOption func(*ToolCallAgent)

// WithToolChoice sets the tool choice mode.
func WithToolChoice(c ToolChoice) ToolCallOption {
	return func(t *ToolCallAgent) { t.choice = c }
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(p string) ToolCallOption {
	return func(t *ToolCallAgent) { t.systemPrompt = p }
}

// WithNextStepPrompt adds a user prompt before every model call.
func WithNextStepPrompt(p string) ToolCallOption {
	return func(t *ToolCallAgent) { t.nextStepPrompt = p }
}

// WithMaxObserve truncates each tool observation to n runes.
func WithMaxObserve(n int) ToolCallOption {
	return func(t *ToolCallAgent) { t.maxObserve = n }
}

// WithToolMemory sets the conversation memory.
func WithToolMemory(m *schema.Memory) ToolCallOption {
	return func(t *ToolCallAgent) { t.memory = m }
}

// WithProgress reports tool execution on the tracker returned by fn.
func WithProgress(fn func() *progress.Tracker) ToolCallOption {
	return func(t *ToolCallAgent) { t.tracker = fn }
}

// ToolCallAgent is a Brain that asks a model for tool calls and executes
// them against a tool collection.
type ToolCallAgent struct {
	model          Model
	tools          *tool.Collection
	choice         ToolChoice
	systemPrompt   string
	nextStepPrompt string
	maxObserve     int
	memory         *schema.Memory
	tracker        func() *progress.Tracker

	toolCalls   []schema.ToolCall
	finished    bool
	base64Image string
}

// NewToolCallAgent creates a brain over model and tools.
func NewToolCallAgent(model Model, tools *tool.Collection, opts ...ToolCallOption) *ToolCallAgent {
	t := &ToolCallAgent{
		model:  model,
		tools:  tools,
		choice: ToolChoiceAuto,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tools == nil {
		t.tools = tool.NewCollection(tool.NewTerminate())
	}
	if t.memory == nil {
		t.memory = schema.NewMemory(0)
	}
	return t
}

// Memory returns the conversation memory.
func (t *ToolCallAgent) Memory() *schema.Memory { return t.memory }

// Finished reports whether a special tool ended the interaction.
func (t *ToolCallAgent) Finished() bool { return t.finished }

// Tools returns the tool collection.
func (t *ToolCallAgent) Tools() *tool.Collection { return t.tools }

// SetToolCalls replaces the pending tool calls.
func (t *ToolCallAgent) SetToolCalls(calls []schema.ToolCall) { t.toolCalls = calls }

// Think asks the model for the next action and records its reply. Memory
// is only written once the model answers, so a retried Think leaves no trace.
func (t *ToolCallAgent) Think(ctx context.Context) (bool, error) {
	messages := t.memory.Recent(t.memory.Len())
	if t.nextStepPrompt != "" {
		messages = append(messages, schema.UserMessage(t.nextStepPrompt))
		if limit := t.memory.MaxMessages; limit > 0 && len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}
	}

	req := ToolRequest{
		Messages:   messages,
		ToolChoice: t.choice,
	}
	if t.systemPrompt != "" {
		req.System = []schema.Message{schema.SystemMessage(t.systemPrompt)}
	}
	if t.choice != ToolChoiceNone {
		req.Tools = t.tools.Params()
	}

	resp, err := t.model.AskTool(ctx, req)
	if err != nil {
		return false, err
	}
	if resp == nil {
		return false, fmt.Errorf("no response received from the model")
	}
	if t.nextStepPrompt != "" {
		t.memory.Add(schema.UserMessage(t.nextStepPrompt))
	}

	t.toolCalls = resp.ToolCalls
	slog.Debug("Model replied", "content_length", len(resp.Content), "tool_calls", len(resp.ToolCalls))

	if t.choice == ToolChoiceNone {
		if len(t.toolCalls) > 0 {
			slog.Warn("Model tried to use tools when they were not available")
			t.toolCalls = nil
		}
		if resp.Content != "" {
			t.memory.Add(schema.AssistantMessage(resp.Content))
			return true, nil
		}
		return false, nil
	}

	msg := schema.AssistantMessage(resp.Content)
	msg.ToolCalls = t.toolCalls
	t.memory.Add(msg)

	if len(t.toolCalls) == 0 {
		switch t.choice {
		case ToolChoiceRequired:
			// Act reports the missing calls.
			return true, nil
		case ToolChoiceAuto:
			return resp.Content != "", nil
		}
	}
	return len(t.toolCalls) > 0, nil
}

// Act executes pending tool calls and returns their observations.
func (t *ToolCallAgent) Act(ctx context.Context) (string, error) {
	if len(t.toolCalls) == 0 {
		if t.choice == ToolChoiceRequired {
			return "", ErrToolCallsRequired
		}
		if n := t.memory.Len(); n > 0 && t.memory.Messages[n-1].Content != "" {
			return t.memory.Messages[n-1].Content, nil
		}
		return "No content or commands to execute", nil
	}

	results := make([]string, 0, len(t.toolCalls))
	for _, call := range t.toolCalls {
		t.base64Image = ""
		result := t.ExecuteTool(ctx, call)
		if t.maxObserve > 0 {
			if r := []rune(result); len(r) > t.maxObserve {
				result = string(r[:t.maxObserve])
			}
		}

		msg := schema.ToolMessage(result, call.Function.Name, call.ID)
		msg.Base64Image = t.base64Image
		t.memory.Add(msg)
		results = append(results, result)
	}
	t.toolCalls = nil
	return strings.Join(results, "\n\n"), nil
}

// ExecuteTool runs one tool call and returns the observation text. Failures
// are reported in the text, never as errors.
func (t *ToolCallAgent) ExecuteTool(ctx context.Context, call schema.ToolCall) string {
	name := call.Function.Name
	if name == "" {
		return "Error: Invalid command format"
	}
	impl, ok := t.tools.Get(name)
	if !ok {
		return fmt.Sprintf("Error: Unknown tool '%s'", name)
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			slog.Error("Invalid tool arguments", "tool", name, "arguments", raw)
			return fmt.Sprintf("Error parsing arguments for %s: Invalid JSON format", name)
		}
	}

	if tr := t.currentTracker(); tr != nil {
		tr.Message("Executing tool: "+name, "info")
	}

	result, err := impl.Execute(ctx, args)
	if err != nil {
		slog.Error("Tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: Tool '%s' encountered a problem: %v", name, err)
	}
	if result != nil {
		t.base64Image = result.Base64Image
	}

	if tool.IsSpecial(name) {
		slog.Info("Special tool has completed the task", "tool", name)
		t.finished = true
	}

	if result == nil || (result.Output == "" && result.Error == "") {
		return fmt.Sprintf("Cmd `%s` completed with no output", name)
	}
	return fmt.Sprintf("Observed output of cmd `%s` executed:\n%s", name, result.String())
}

func (t *ToolCallAgent) currentTracker() *progress.Tracker {
	if t.tracker == nil {
		return nil
	}
	return t.tracker()
}
