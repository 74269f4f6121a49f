// Package steadfast is a resilient runner for long-lived agent and shell
// tasks.
//
// A task is a YAML file of named steps. Each step runs under a retry
// strategy chosen from the error it raises, reports progress on an event
// bus, and leaves a checkpoint behind so an interrupted run can pick up
// where it stopped.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/steadfast/cmd/steadfast@latest
//
// Describe a task:
//
//	name: release
//	steps:
//	  - name: test
//	    run: go test ./...
//	  - name: upload
//	    run: ./scripts/upload.sh
//	    retry: network
//	    timeout: 2m
//
// Run it, and resume it after Ctrl+C:
//
//	steadfast run release.yaml
//	steadfast run release.yaml --resume
//
// # Using as Go Library
//
// The building blocks are importable on their own:
//
//	import (
//	    "github.com/kadirpekel/steadfast/pkg/recovery"
//	    "github.com/kadirpekel/steadfast/pkg/progress"
//	    "github.com/kadirpekel/steadfast/pkg/shutdown"
//	    "github.com/kadirpekel/steadfast/pkg/checkpoint"
//	)
//
// # Packages
//
//   - recovery: error taxonomy, retry strategies and diagnosis
//   - progress: event bus and trackers, with terminal rendering in progress/display
//   - shutdown: signal handling with state persistence
//   - checkpoint: bounded checkpoint storage on files or SQL
//   - history: saved conversation sessions
//   - agent: a ReAct and tool-calling agent loop wired to the above
//   - runner: the task runner behind the CLI
//   - observability: OpenTelemetry tracing and Prometheus metrics
//
// # License
//
// AGPL-3.0 for files carrying the AGPL-3.0 header, Apache-2.0 for the rest.
package steadfast
