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

package progress

import "sync"

var (
	defaultBusMu sync.Mutex
	defaultBus   *Bus
)

// DefaultBus returns the process-wide bus, creating it on first use.
// Trackers created without WithBus publish here.
func DefaultBus() *Bus {
	defaultBusMu.Lock()
	defer defaultBusMu.Unlock()
	if defaultBus == nil {
		defaultBus = NewBus()
	}
	return defaultBus
}

// ResetDefaultBus discards the process-wide bus. Used for test isolation.
func ResetDefaultBus() {
	defaultBusMu.Lock()
	defaultBus = nil
	defaultBusMu.Unlock()
}
