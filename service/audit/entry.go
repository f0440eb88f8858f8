package audit

import (
	"fmt"
	"strings"
	"time"
)

// Statuses recorded in the ledger. Terminal task outcomes use exactly one of
// Success, Failed (validation) or Failed (delivery).
const (
	StatusSuccess          = "Success"
	StatusFailedValidation = "Failed (validation)"
	StatusFailedDelivery   = "Failed (delivery)"
	StatusFailedSource     = "Failed (source)"
	StatusAttempted        = "Attempted"
	StatusInfo             = "Info"
)

// Entry is one immutable ledger record. Entries are created once per
// transition and never mutated or deleted.
type Entry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Status string
	Detail string
}

// Line renders the entry in the one-line human-readable ledger format.
func (e Entry) Line() string {
	detail := strings.ReplaceAll(e.Detail, "\n", " ")
	detail = strings.ReplaceAll(detail, "|", "/")
	return fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		e.Time.UTC().Format(time.RFC3339), e.Actor, e.Action, e.Target, e.Status, detail)
}

// ParseLine decodes a ledger line back into an entry. Used by downstream
// consumers (status listing, tests); the ledger itself is write-only.
func ParseLine(line string) (Entry, error) {
	parts := strings.SplitN(line, " | ", 6)
	if len(parts) < 5 {
		return Entry{}, fmt.Errorf("malformed ledger line: %q", line)
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed ledger timestamp: %w", err)
	}
	entry := Entry{Time: ts, Actor: parts[1], Action: parts[2], Target: parts[3], Status: parts[4]}
	if len(parts) == 6 {
		entry.Detail = parts[5]
	}
	return entry, nil
}
