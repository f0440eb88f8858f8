// Package approval implements the human-in-the-loop gate: the mandatory
// move of a draft between pending-approval, approved and rejected stores.
// No external effect ever happens without this move.
package approval
