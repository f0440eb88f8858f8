// Package connector defines the abstract boundary to external vendors and
// the explicit registry the engine dispatches through. Concrete connectors
// live in subpackages; their authentication lifecycles stay outside the
// workflow core.
package connector
