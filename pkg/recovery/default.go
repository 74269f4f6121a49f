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

import "sync"

var (
	defaultMu      sync.Mutex
	defaultHandler *Handler
)

// Default returns the process-wide handler, creating it on first use.
// Prefer passing a *Handler explicitly; this exists for call sites at the
// composition root.
func Default() *Handler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHandler == nil {
		defaultHandler = NewHandler()
	}
	return defaultHandler
}

// ResetDefault drops the process-wide handler.
func ResetDefault() {
	defaultMu.Lock()
	defaultHandler = nil
	defaultMu.Unlock()
}
