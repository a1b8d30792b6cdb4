// Package metrics tracks drift across long-running agent runs.
//
// Every coding session and validation attempt is appended to
// drift-metrics.json (the name is configurable). Aggregates are recomputed
// from the detail records on every write, and re-checked on every load so
// hand edits or truncated files are reported instead of silently trusted.
//
// The package also parses coding-session output for the evaluation
// sections and regression verdicts that feed each session record, and
// exports the current aggregates as Prometheus gauges.
package metrics
