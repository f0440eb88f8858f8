// Package engine implements the execution engine: it re-validates approved
// drafts, journals a write-ahead attempt record, invokes the matching
// connector exactly once per task, and moves the file to its terminal store.
package engine
