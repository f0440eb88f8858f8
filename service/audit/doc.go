// Package audit implements the append-only ledger: one human-readable line
// per workflow transition, written by a single goroutine. Once a task file
// leaves its terminal store the ledger is the only source of its history.
package audit
