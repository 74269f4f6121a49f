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

package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// AskHumanName is the name of the ask-human tool.
const AskHumanName = "ask_human"

type askHumanArgs struct {
	Inquire string `json:"inquire" jsonschema:"required,description=The question you want to ask human."`
}

// AskHuman prompts a person on a writer and reads one line of reply.
type AskHuman struct {
	in  *bufio.Reader
	out io.Writer
}

// NewAskHuman creates the tool. Nil arguments use stdin and stdout.
func NewAskHuman(in io.Reader, out io.Writer) *AskHuman {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &AskHuman{in: bufio.NewReader(in), out: out}
}

// Name implements Tool.
func (*AskHuman) Name() string { return AskHumanName }

// Description implements Tool.
func (*AskHuman) Description() string { return "Use this tool to ask human for help." }

// Parameters implements Tool.
func (*AskHuman) Parameters() map[string]any { return SchemaFor[askHumanArgs]() }

// Execute implements Tool.
func (t *AskHuman) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	var a askHumanArgs
	if err := DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(t.out, "Bot: %s\n\nYou: ", a.Inquire); err != nil {
		return nil, err
	}

	type reply struct {
		line string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- reply{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return nil, fmt.Errorf("failed to read reply: %w", r.err)
		}
		return Success(strings.TrimSpace(r.line)), nil
	}
}
