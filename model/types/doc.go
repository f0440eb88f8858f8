// Package types defines the shared contract types of the workflow: the
// error taxonomy every component reports through and the typed submission
// result returned by connectors.
package types
