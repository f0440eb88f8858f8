// Package correlation provides the explicit correlation machinery: a
// persisted seen-index deduplicating watcher output and exact-id resolution
// between approval artifacts and their originating tasks.
package correlation
