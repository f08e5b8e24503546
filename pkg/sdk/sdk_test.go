package sdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/celerix-dev/celerix-assist/internal/engine"
	"github.com/celerix-dev/celerix-assist/internal/server"
	"github.com/celerix-dev/celerix-assist/pkg/kv"
	"github.com/celerix-dev/celerix-assist/pkg/sdk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, store kv.ListStore) string {
	t.Helper()
	router := server.NewRouter(store, discardLogger())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				router.HandleConnection(conn)
			}()
		}
	}()
	t.Cleanup(func() { listener.Close() })
	return listener.Addr().String()
}

func TestClient_Integration(t *testing.T) {
	store := engine.NewMemStore(nil, nil)
	addr := serve(t, store)

	client, err := sdk.Connect(addr, true, discardLogger())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	value := []byte("{\"study_buddy\":[]}\n with spaces and newline")
	if err := client.Set("history:alice@example.com", value); err != nil {
		t.Fatalf("Client Set failed: %v", err)
	}

	got, err := client.Get("history:alice@example.com")
	if err != nil || string(got) != string(value) {
		t.Errorf("Client Get failed: %q, %v", got, err)
	}

	// The server-side store sees the raw bytes.
	if raw, _ := store.Get("history:alice@example.com"); string(raw) != string(value) {
		t.Errorf("Server store holds %q", raw)
	}

	keys, err := client.Keys()
	if err != nil || len(keys) != 1 || keys[0] != "history:alice@example.com" {
		t.Errorf("Client Keys failed: %v, %v", keys, err)
	}

	if err := client.Set("empty", nil); err != nil {
		t.Fatalf("Set of empty value failed: %v", err)
	}
	if got, err := client.Get("empty"); err != nil || len(got) != 0 {
		t.Errorf("Expected empty value, got %q, %v", got, err)
	}

	if err := client.Remove("history:alice@example.com"); err != nil {
		t.Fatalf("Client Remove failed: %v", err)
	}
	if _, err := client.Get("history:alice@example.com"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestClient_InvalidKey(t *testing.T) {
	addr := serve(t, engine.NewMemStore(nil, nil))
	client, err := sdk.Connect(addr, true, discardLogger())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.Set("has space", []byte("x")); !errors.Is(err, kv.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestClient_RetryLogic(t *testing.T) {
	store := engine.NewMemStore(nil, nil)
	router := server.NewRouter(store, discardLogger())

	listener, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := listener.Addr().String()

	go func() {
		conn, _ := listener.Accept()
		if conn != nil {
			go router.HandleConnection(conn)
		}
	}()

	client, err := sdk.Connect(addr, true, discardLogger())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	// Close the listener so no more connections can be accepted
	listener.Close()

	client.Set("profile", []byte("v1"))

	// A later failure must surface as an error rather than a panic.
	client.Get("profile")
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cases := []sdk.Options{
		{Backend: sdk.BackendMemory},
		{Backend: sdk.BackendFile, DataDir: filepath.Join(dir, "files")},
		{Backend: sdk.BackendBolt, BoltPath: filepath.Join(dir, "bolt", "assist.bolt")},
	}
	for _, opts := range cases {
		t.Run(opts.Backend, func(t *testing.T) {
			s, err := sdk.Open(ctx, opts, discardLogger())
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()

			if err := s.Set("profile", []byte("p")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if got, err := s.Get("profile"); err != nil || string(got) != "p" {
				t.Errorf("Get failed: %q, %v", got, err)
			}
		})
	}
}

func TestOpen_FileBackendReloads(t *testing.T) {
	ctx := context.Background()
	opts := sdk.Options{Backend: sdk.BackendFile, DataDir: t.TempDir()}

	s, err := sdk.Open(ctx, opts, discardLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Set("history:alice@example.com", []byte(`{}`))
	s.Close()

	s2, err := sdk.Open(ctx, opts, discardLogger())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if got, err := s2.Get("history:alice@example.com"); err != nil || string(got) != `{}` {
		t.Errorf("Expected reloaded value, got %q, %v", got, err)
	}
}

func TestOpen_Remote(t *testing.T) {
	addr := serve(t, engine.NewMemStore(nil, nil))

	s, err := sdk.Open(context.Background(), sdk.Options{Backend: sdk.BackendRemote, RemoteAddr: addr, DisableTLS: true}, discardLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Set("profile", []byte("p")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestOpen_Misconfigured(t *testing.T) {
	ctx := context.Background()
	for _, opts := range []sdk.Options{
		{Backend: "cassandra"},
		{Backend: sdk.BackendPostgres},
		{Backend: sdk.BackendRemote},
	} {
		if _, err := sdk.Open(ctx, opts, discardLogger()); err == nil {
			t.Errorf("Expected error for %+v", opts)
		}
	}
}
