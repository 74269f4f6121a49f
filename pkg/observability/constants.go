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

package observability

const (
	SpanTracker = "progress.tracker"
	SpanHTTP    = "http.request"

	AttrTrackerID          = "tracker.id"
	AttrTrackerDescription = "tracker.description"
	AttrTrackerTotalSteps  = "tracker.total_steps"
	AttrTrackerSteps       = "tracker.completed_steps"
	AttrErrorType          = "error.type"
	AttrCategory           = "category"
	AttrOutcome            = "outcome"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName   = "steadfast"
	DefaultSamplingRate  = 1.0
	DefaultOTLPEndpoint  = "localhost:4317"
	DefaultMetricsPath   = "/metrics"
	DefaultServerAddress = ":9464"
)
