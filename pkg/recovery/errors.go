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
	"errors"
	"time"
)

// Category groups failures by what went wrong, independent of what to do about it.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryAPI            Category = "api"
	CategoryRateLimit      Category = "rate_limit"
	CategoryAuthentication Category = "auth"
	CategoryBrowser        Category = "browser"
	CategoryFilesystem     Category = "filesystem"
	CategoryTimeout        Category = "timeout"
	CategoryConfiguration  Category = "config"
	CategoryResource       Category = "resource"
	CategoryUnknown        Category = "unknown"
)

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryNetwork,
		CategoryAPI,
		CategoryRateLimit,
		CategoryAuthentication,
		CategoryBrowser,
		CategoryFilesystem,
		CategoryTimeout,
		CategoryConfiguration,
		CategoryResource,
		CategoryUnknown,
	}
}

// ParseCategory converts a category name back to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return CategoryUnknown, false
}

func (c Category) String() string {
	return string(c)
}

// BaseError is the common part of recovery errors. It carries a category
// and the underlying cause, if any.
type BaseError struct {
	Message  string
	Category Category
	Cause    error
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

// RetryableError marks a failure as safe to retry. SuggestedDelay, when
// positive, replaces the computed backoff delay (e.g. from a Retry-After header).
type RetryableError struct {
	BaseError
	SuggestedDelay time.Duration
}

// Retryable always reports true.
func (e *RetryableError) Retryable() bool { return true }

// FatalError marks a failure that must never be retried.
type FatalError struct {
	BaseError
}

// Retryable always reports false.
func (e *FatalError) Retryable() bool { return false }

// NewRetryable wraps cause as a retryable failure.
func NewRetryable(message string, category Category, cause error) *RetryableError {
	if category == "" {
		category = CategoryUnknown
	}
	return &RetryableError{BaseError: BaseError{Message: message, Category: category, Cause: cause}}
}

// NewRetryableAfter is NewRetryable with a suggested delay.
func NewRetryableAfter(message string, category Category, cause error, delay time.Duration) *RetryableError {
	e := NewRetryable(message, category, cause)
	e.SuggestedDelay = delay
	return e
}

// NewFatal wraps cause as a fatal failure.
func NewFatal(message string, category Category, cause error) *FatalError {
	if category == "" {
		category = CategoryUnknown
	}
	return &FatalError{BaseError: BaseError{Message: message, Category: category, Cause: cause}}
}

// retryabler is implemented by errors that carry an explicit retry verdict.
type retryabler interface {
	Retryable() bool
}

// explicitVerdict looks for a RetryableError or FatalError anywhere in the chain.
func explicitVerdict(err error) (bool, bool) {
	var r retryabler
	if errors.As(err, &r) {
		return r.Retryable(), true
	}
	return false, false
}

// suggestedDelay returns the delay hint of a RetryableError in the chain.
func suggestedDelay(err error) time.Duration {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.SuggestedDelay
	}
	return 0
}
