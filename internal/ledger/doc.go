// Package ledger reads and mutates the per-project progress files:
// feature_list.json, validation-history.json and spec-workflow.json.
//
// The read-side queries never fail. A missing or malformed ledger is
// treated as "zero features" so the orchestrator always has a state to
// act on. Mutations are read-modify-write through fileutil.AtomicWrite,
// so an interrupted write never corrupts the committed file.
//
// There is no locking: one orchestrator process drives a project
// directory at a time.
package ledger
