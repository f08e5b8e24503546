// Package kv defines the opaque key-value slot store that every persisted
// piece of assistant state lives in.
package kv

import "errors"

var (
	// ErrKeyNotFound is returned by Get when a key has never been set or was removed.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned when a key is empty or contains whitespace.
	ErrInvalidKey = errors.New("invalid key")
)

// Store is the minimal slot store contract.
// A Set replaces the whole value for a key in one step: a concurrent reader
// observes either the previous value or the new one. Concurrent writers on
// the same key are last-write-wins; there is no merge.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// ListStore combines Store and Lister.
type ListStore interface {
	Store
	Lister
}

// ValidKey reports whether key can be stored by every backend,
// including the line protocol which splits on whitespace.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}
