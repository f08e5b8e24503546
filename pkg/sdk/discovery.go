package sdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/celerix-dev/celerix-assist/internal/engine"
	"github.com/celerix-dev/celerix-assist/pkg/kv"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// Options select and locate a slot store backend.
type Options struct {
	Backend     string
	DataDir     string
	BoltPath    string
	DatabaseURL string
	RemoteAddr  string
	DisableTLS  bool
}

// Store is an opened slot store. Close releases whatever the backend holds.
type Store interface {
	kv.ListStore
	Close() error
}

type memStore struct{ *engine.MemStore }

func (memStore) Close() error { return nil }

type pgStore struct{ *engine.PGStore }

func (s pgStore) Close() error {
	s.PGStore.Close()
	return nil
}

// Open initializes the backend named by opts.Backend. The app only sees the
// returned interface, so it does not care whether the slots are local or
// remote.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return memStore{engine.NewMemStore(nil, nil)}, nil

	case BackendFile, "":
		p, err := engine.NewPersistence(opts.DataDir)
		if err != nil {
			return nil, err
		}
		allData, err := p.LoadAll()
		if err != nil {
			return nil, err
		}
		logger.Info("file slot store loaded", "dir", opts.DataDir, "keys", len(allData))
		return memStore{engine.NewMemStore(allData, p)}, nil

	case BackendBolt:
		b, err := engine.OpenBolt(opts.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info("bolt slot store opened", "path", opts.BoltPath)
		return b, nil

	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		s, err := engine.NewPGStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("postgres slot store connected")
		return pgStore{s}, nil

	case BackendRemote:
		if opts.RemoteAddr == "" {
			return nil, fmt.Errorf("remote backend requires ASSIST_STORE_ADDR")
		}
		c, err := Connect(opts.RemoteAddr, opts.DisableTLS, logger)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", opts.RemoteAddr, err)
		}
		logger.Info("remote slot store connected", "addr", opts.RemoteAddr, "tls", !opts.DisableTLS)
		return c, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}
