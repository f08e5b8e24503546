// Package engine provides the slot store backends: an in-memory store with
// optional file persistence, a bbolt file, and a PostgreSQL table.
package engine

import "github.com/celerix-dev/celerix-assist/pkg/kv"

var (
	_ kv.ListStore = (*MemStore)(nil)
	_ kv.ListStore = (*BoltStore)(nil)
	_ kv.ListStore = (*PGStore)(nil)
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
