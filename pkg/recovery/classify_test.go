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

package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:80: connect: Connection refused"), CategoryNetwork},
		{"dns failure", errors.New("lookup example.invalid: DNS server misbehaving"), CategoryNetwork},
		{"timeout", errors.New("request timed out"), CategoryTimeout},
		{"timeout wins over api", errors.New("api request timeout"), CategoryTimeout},
		{"context deadline", context.DeadlineExceeded, CategoryTimeout},
		{"rate limit", errors.New("HTTP 429 Too Many Requests"), CategoryRateLimit},
		{"quota", errors.New("monthly quota exceeded"), CategoryRateLimit},
		{"unauthorized", errors.New("401 Unauthorized"), CategoryAuthentication},
		{"forbidden", errors.New("403 Forbidden"), CategoryAuthentication},
		{"browser", errors.New("chrome page crashed"), CategoryBrowser},
		{"permission denied", errors.New("open /etc/shadow: permission denied"), CategoryFilesystem},
		{"config", errors.New("llm not configured"), CategoryConfiguration},
		{"resource", errors.New("out of memory"), CategoryResource},
		{"bad gateway", errors.New("502 Bad Gateway"), CategoryAPI},
		{"novel", errors.New("boom"), CategoryUnknown},
		{"empty", errors.New(""), CategoryUnknown},
		{"nil", nil, CategoryUnknown},
		{"explicit category", NewFatal("nope", CategoryAuthentication, nil), CategoryAuthentication},
		{"wrapped", fmt.Errorf("step failed: %w", errors.New("network is unreachable")), CategoryNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_PathError(t *testing.T) {
	_, err := os.Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, CategoryFilesystem, Classify(err))
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"rate limit", errors.New("rate limit reached"), true},
		{"api", errors.New("503 service unavailable"), true},
		{"browser", errors.New("playwright failed"), true},
		{"auth", errors.New("invalid key"), false},
		{"filesystem", errors.New("disk full"), false},
		{"config", errors.New("missing setting"), false},
		{"unknown", errors.New("boom"), false},
		{"explicit fatal overrides text", NewFatal("connection refused", "", nil), false},
		{"explicit retryable overrides text", NewRetryable("401 unauthorized", "", nil), true},
		{"wrapped explicit", fmt.Errorf("outer: %w", NewRetryable("flaky", CategoryUnknown, nil)), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRecoveryErrors_Unwrap(t *testing.T) {
	cause := errors.New("root cause")

	re := NewRetryable("retry me", CategoryAPI, cause)
	assert.ErrorIs(t, re, cause)
	assert.Equal(t, "retry me", re.Error())

	fe := NewFatal("stop", "", cause)
	assert.ErrorIs(t, fe, cause)
	assert.Equal(t, CategoryUnknown, fe.Category)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("rate_limit")
	assert.True(t, ok)
	assert.Equal(t, CategoryRateLimit, c)

	c, ok = ParseCategory("nonsense")
	assert.False(t, ok)
	assert.Equal(t, CategoryUnknown, c)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "recovery.FatalError", TypeName(NewFatal("x", "", nil)))
	assert.Equal(t, "", TypeName(nil))
}
