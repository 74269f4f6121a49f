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

package recovery

import (
	"fmt"
	"strings"
)

const docsBaseURL = "https://github.com/FoundationAgents/OpenManus"

// Diagnosis is a user-facing explanation of a failure.
type Diagnosis struct {
	Category    Category `json:"category"`
	ErrorType   string   `json:"error_type"`
	Message     string   `json:"message"`
	Cause       string   `json:"cause"`
	Suggestions []string `json:"suggestions"`
	DocsLink    string   `json:"docs_link,omitempty"`
	Retryable   bool     `json:"is_retryable"`
}

var causes = map[Category]string{
	CategoryNetwork:        "Network connectivity problem or the service is unreachable",
	CategoryTimeout:        "The operation timed out, likely due to a slow network or a slow service",
	CategoryRateLimit:      "The API request rate limit was exceeded",
	CategoryAuthentication: "Authentication failed; the API key may be invalid or expired",
	CategoryBrowser:        "A problem occurred during browser automation",
	CategoryFilesystem:     "A filesystem operation failed",
	CategoryAPI:            "The API service returned an error",
	CategoryConfiguration:  "Configuration is invalid or a required setting is missing",
	CategoryResource:       "System resources (memory, disk) are insufficient",
	CategoryUnknown:        "Unknown error; further investigation is needed",
}

var suggestions = map[Category][]string{
	CategoryNetwork: {
		"Check that the network connection is working",
		"Confirm the target service is reachable",
		"Check firewall or proxy settings",
		"Try a VPN or a different network",
	},
	CategoryTimeout: {
		"Increase the timeout setting",
		"Check network latency",
		"Confirm whether the service is responding slowly",
		"Consider splitting the task into smaller subtasks",
	},
	CategoryRateLimit: {
		"Wait a few minutes and retry",
		"Check your API quota usage",
		"Consider upgrading the API plan or raising the quota",
		"Throttle the request rate",
	},
	CategoryAuthentication: {
		"Check that the API key is set in the configuration file",
		"Verify the API key is valid and not expired",
		"Confirm the API key has the required permissions",
		"Check the key status on the provider's dashboard",
	},
	CategoryBrowser: {
		"Make sure browser drivers are installed: playwright install",
		"Check whether the browser is running",
		"Try restarting the browser",
		"Check that the page loaded correctly",
		"Consider increasing the page load timeout",
	},
	CategoryFilesystem: {
		"Check that the file path is correct",
		"Confirm the file or directory exists",
		"Verify read and write permissions",
		"Check that there is enough free disk space",
	},
	CategoryAPI: {
		"Check the API service status page",
		"Check that the API version is supported",
		"Verify the request parameters",
		"Retry later",
	},
	CategoryConfiguration: {
		"Check that the configuration file exists",
		"Confirm every required setting is filled in",
		"Compare against the example configuration",
		"Validate the configuration format",
	},
	CategoryResource: {
		"Close unneeded applications to free resources",
		"Check system memory and disk usage",
		"Consider adding system resources",
		"Optimize the task to use fewer resources",
	},
	CategoryUnknown: {
		"Read the full error log for more information",
		"Search for the error message",
		"Report the problem on the issue tracker",
		"Contact support",
	},
}

var docsLinks = map[Category]string{
	CategoryNetwork:        docsBaseURL + "#network-issues",
	CategoryTimeout:        docsBaseURL + "#timeout-issues",
	CategoryRateLimit:      docsBaseURL + "#rate-limiting",
	CategoryAuthentication: docsBaseURL + "#configuration",
	CategoryBrowser:        docsBaseURL + "#browser-automation-tool-optional",
	CategoryFilesystem:     docsBaseURL + "#installation",
	CategoryAPI:            docsBaseURL + "#configuration",
	CategoryConfiguration:  docsBaseURL + "#configuration",
	CategoryResource:       docsBaseURL + "#installation",
}

// contextRule adds a suggestion when the message of an error in category
// contains fragment.
type contextRule struct {
	category   Category
	fragment   string
	suggestion string
}

var contextRules = []contextRule{
	{CategoryNetwork, "dns", "DNS resolution failed; check that the host name is correct"},
	{CategoryNetwork, "proxy", "The proxy configuration may be wrong; check proxy settings"},
	{CategoryAPI, "500", "Internal server error; retry later"},
	{CategoryAPI, "503", "Service temporarily unavailable; wait a few minutes and retry"},
	{CategoryAuthentication, "expired", "The API key has expired and must be renewed"},
	{CategoryAuthentication, "invalid", "The API key looks malformed; check it was copied completely"},
}

// Diagnose explains err. It has no side effects.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{Category: CategoryUnknown, Cause: causes[CategoryUnknown]}
	}

	category := Classify(err)
	message := err.Error()

	return Diagnosis{
		Category:    category,
		ErrorType:   TypeName(err),
		Message:     message,
		Cause:       causeFor(category),
		Suggestions: suggestionsFor(category, message),
		DocsLink:    docsLinks[category],
		Retryable:   CategoryRetryable(category),
	}
}

func causeFor(category Category) string {
	if c, ok := causes[category]; ok {
		return c
	}
	return "The cause could not be determined"
}

func suggestionsFor(category Category, message string) []string {
	base := suggestions[category]
	out := make([]string, 0, len(base)+2)
	out = append(out, base...)

	lower := strings.ToLower(message)
	for _, rule := range contextRules {
		if rule.category == category && strings.Contains(lower, rule.fragment) {
			out = append(out, rule.suggestion)
		}
	}
	return out
}

// Format renders the diagnosis as a text report.
func (d Diagnosis) Format() string {
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("Error diagnosis\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Category:  %s\n", d.Category)
	fmt.Fprintf(&b, "Type:      %s\n", d.ErrorType)
	fmt.Fprintf(&b, "Retryable: %s\n", yesNo(d.Retryable))
	b.WriteString("\nCause:\n")
	fmt.Fprintf(&b, "  %s\n", d.Cause)

	if len(d.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for i, s := range d.Suggestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	if d.DocsLink != "" {
		fmt.Fprintf(&b, "\nDocs: %s\n", d.DocsLink)
	}
	b.WriteString(rule + "\n")
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
