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
	"fmt"
	"strings"
)

// keywordGroup maps a set of lowercase fragments to a category. When
// matchType is set the error's Go type name is searched as well as its message.
type keywordGroup struct {
	category  Category
	keywords  []string
	matchType bool
}

// classificationOrder is checked top to bottom, first match wins.
// A message mentioning both "timeout" and "api" is a timeout.
var classificationOrder = []keywordGroup{
	{
		category:  CategoryNetwork,
		matchType: true,
		keywords: []string{
			"connection", "network", "unreachable", "dns", "socket",
			"connectionerror", "connectionrefusederror",
		},
	},
	{
		category:  CategoryTimeout,
		matchType: true,
		keywords:  []string{"timeout", "timed out", "timeouterror", "deadline exceeded"},
	},
	{
		category: CategoryRateLimit,
		keywords: []string{"rate limit", "429", "too many requests", "quota"},
	},
	{
		category:  CategoryAuthentication,
		matchType: true,
		keywords: []string{
			"api key", "authentication", "unauthorized", "401", "403",
			"forbidden", "invalid key",
		},
	},
	{
		category:  CategoryBrowser,
		matchType: true,
		keywords:  []string{"browser", "playwright", "selenium", "chrome", "firefox", "page crashed"},
	},
	{
		category:  CategoryFilesystem,
		matchType: true,
		keywords: []string{
			"file not found", "permission denied", "disk", "filesystem", "ioerror", "oserror",
			"no such file or directory", "patherror",
		},
	},
	{
		category:  CategoryConfiguration,
		matchType: true,
		keywords:  []string{"config", "configuration", "missing", "not configured"},
	},
	{
		category:  CategoryResource,
		matchType: true,
		keywords:  []string{"memory", "out of memory", "resource", "memoryerror"},
	},
	{
		category:  CategoryAPI,
		matchType: true,
		keywords:  []string{"api", "500", "502", "503", "504", "bad gateway"},
	},
}

// retryableCategories are transient by nature. Anything outside this set,
// including CategoryUnknown, is treated as fatal.
var retryableCategories = map[Category]bool{
	CategoryNetwork:   true,
	CategoryTimeout:   true,
	CategoryRateLimit: true,
	CategoryAPI:       true,
	CategoryBrowser:   true,
}

// Classify assigns err to a category by searching its message and type name.
// Recovery errors created with an explicit category keep that category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var base *BaseError
	if errors.As(err, &base) && base.Category != "" && base.Category != CategoryUnknown {
		return base.Category
	}
	var re *RetryableError
	if errors.As(err, &re) && re.Category != "" && re.Category != CategoryUnknown {
		return re.Category
	}
	var fe *FatalError
	if errors.As(err, &fe) && fe.Category != "" && fe.Category != CategoryUnknown {
		return fe.Category
	}

	return classifyText(strings.ToLower(err.Error()), strings.ToLower(TypeName(err)))
}

func classifyText(message, typeName string) Category {
	for _, group := range classificationOrder {
		for _, kw := range group.keywords {
			if strings.Contains(message, kw) {
				return group.category
			}
			if group.matchType && typeName != "" && strings.Contains(typeName, kw) {
				return group.category
			}
		}
	}
	return CategoryUnknown
}

// IsRetryable reports whether err is worth another attempt. An explicit
// RetryableError or FatalError in the chain decides; otherwise the category does.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if verdict, ok := explicitVerdict(err); ok {
		return verdict
	}
	return CategoryRetryable(Classify(err))
}

// CategoryRetryable reports whether failures of category c are typically transient.
func CategoryRetryable(c Category) bool {
	return retryableCategories[c]
}

// TypeName returns the Go type of err without the pointer marker,
// e.g. "net.OpError".
func TypeName(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
