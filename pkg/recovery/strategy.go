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
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// Strategy describes how failures are retried. Preset constructors return a
// fresh value on every call.
type Strategy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential delay (before jitter).
	MaxDelay time.Duration
	// ExponentialBase is the growth factor per attempt.
	ExponentialBase float64
	// Jitter multiplies each delay by a random factor in [0.5, 1.5).
	Jitter bool
	// Categories restricts retries to these categories. Empty means any
	// retryable category.
	Categories []Category
}

// DefaultStrategy is used when no strategy is given.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// APIStrategy suits LLM and HTTP API calls.
func APIStrategy() Strategy {
	return Strategy{
		MaxRetries:      5,
		InitialDelay:    2 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Categories:      []Category{CategoryNetwork, CategoryTimeout, CategoryAPI, CategoryRateLimit},
	}
}

// BrowserStrategy suits browser automation.
func BrowserStrategy() Strategy {
	return Strategy{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Categories:      []Category{CategoryBrowser, CategoryNetwork},
	}
}

// FilesystemStrategy suits file operations. Filesystem errors are not
// retryable by classification, so only explicit RetryableErrors retry.
func FilesystemStrategy() Strategy {
	return Strategy{
		MaxRetries:      2,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Categories:      []Category{CategoryFilesystem},
	}
}

// QuickStrategy suits cheap operations with brief transient failures.
func QuickStrategy() Strategy {
	return Strategy{
		MaxRetries:      2,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Preset returns a named strategy: "default", "api", "browser", "filesystem" or "quick".
func Preset(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultStrategy(), nil
	case "api":
		return APIStrategy(), nil
	case "browser":
		return BrowserStrategy(), nil
	case "filesystem", "fs":
		return FilesystemStrategy(), nil
	case "quick":
		return QuickStrategy(), nil
	default:
		return Strategy{}, fmt.Errorf("unknown retry preset %q (valid: default, api, browser, filesystem, quick)", name)
	}
}

// PresetNames lists the names accepted by Preset.
func PresetNames() []string {
	return []string{"default", "api", "browser", "filesystem", "quick"}
}

// Validate checks the strategy parameters.
func (s Strategy) Validate() error {
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", s.MaxRetries)
	}
	if s.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be non-negative")
	}
	if s.MaxDelay < s.InitialDelay {
		return fmt.Errorf("max_delay (%s) must be >= initial_delay (%s)", s.MaxDelay, s.InitialDelay)
	}
	if s.ExponentialBase <= 1 {
		return fmt.Errorf("exponential_base must be > 1, got %g", s.ExponentialBase)
	}
	return nil
}

// Delay returns how long to wait before retrying after the given 0-indexed
// attempt. A positive suggested delay replaces the exponential base delay.
func (s Strategy) Delay(attempt int, suggested time.Duration) time.Duration {
	var base float64
	if suggested > 0 {
		base = float64(suggested)
	} else {
		base = float64(s.InitialDelay) * math.Pow(s.ExponentialBase, float64(attempt))
		if base > float64(s.MaxDelay) || math.IsInf(base, 0) || math.IsNaN(base) {
			base = float64(s.MaxDelay)
		}
	}

	if s.Jitter {
		base *= 0.5 + rand.Float64()
	}

	if base < 0 {
		return 0
	}
	return time.Duration(base)
}

// ShouldRetry decides whether a failure on the given attempt gets another try.
func (s Strategy) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxRetries {
		return false
	}
	if !IsRetryable(err) {
		return false
	}
	if len(s.Categories) > 0 {
		return slices.Contains(s.Categories, Classify(err))
	}
	return true
}
