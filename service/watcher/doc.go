// Package watcher turns inbound items detected at external sources into
// task files. Each watcher owns the needs-action store boundary and nothing
// else; sources live in subpackages.
package watcher
