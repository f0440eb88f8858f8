// Package vetflow coordinates asynchronous inbound watchers and
// irreversible external actions through a mandatory human approval gate.
// State lives in the filesystem: named stores form the workflow's finite
// state machine and an atomic rename is the only transition primitive, so
// any tool that can move a file can authorize an action. An append-only
// audit ledger records every transition.
package vetflow
