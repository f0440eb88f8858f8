package types

// Result carries the outcome of a successful connector submission. A failed
// submission is reported as an error (see DeliveryError), never as a flag on
// the result.
type Result struct {
	// ExternalID is the vendor-side identifier of the created artifact
	// (post URN, message id, invoice id).
	ExternalID string

	// Detail is an optional human-readable note, e.g. the vendor endpoint
	// or truncation notice applied by policy.
	Detail string
}
