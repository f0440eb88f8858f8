// Package store implements the directory protocol: named stores acting as
// workflow states, with atomic rename as the only transition primitive.
package store
