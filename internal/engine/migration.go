package engine

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
)

// Migrate copies every slot from src into dst and returns how many were copied.
// This works for:
// - File -> Bolt/Postgres (moving to a sturdier backend)
// - Remote -> File (taking an offline backup of a shared store)
func Migrate(src kv.ListStore, dst kv.Store) (int, error) {
	keys, err := src.Keys()
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	copied := 0
	for _, k := range keys {
		val, err := src.Get(k)
		if errors.Is(err, kv.ErrKeyNotFound) {
			continue // removed since Keys ran
		}
		if err != nil {
			return copied, fmt.Errorf("failed to read key %s: %w", k, err)
		}
		if err := dst.Set(k, val); err != nil {
			return copied, fmt.Errorf("failed to set key %s in destination: %w", k, err)
		}
		copied++
	}
	return copied, nil
}
