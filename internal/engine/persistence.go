package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const slotExt = ".json"

// Persistence handles the disk I/O for the MemStore: one file per key.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Persistence{DataDir: dir}, nil
}

// slotFile maps a key such as "history:alice@example.com" onto a file name
// that is safe on every filesystem.
func (p *Persistence) slotFile(key string) string {
	return filepath.Join(p.DataDir, url.QueryEscape(key)+slotExt)
}

// SaveKey writes a single slot to disk atomically.
func (p *Persistence) SaveKey(key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := p.slotFile(key)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, value, 0o644); err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}

	// Rename replaces the file in one step: a crash leaves either the old
	// value or the new one, never a partial file.
	if err := os.Rename(tempPath, filePath); err != nil {
		return fmt.Errorf("commit slot %s: %w", key, err)
	}
	return nil
}

// RemoveKey deletes a slot's file. A missing file is not an error.
func (p *Persistence) RemoveKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.slotFile(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove slot %s: %w", key, err)
	}
	return nil
}

// LoadAll returns every slot found in the data directory.
// Unreadable files are skipped with a warning.
func (p *Persistence) LoadAll() (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string][]byte)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != slotExt {
			continue
		}

		key, err := url.QueryUnescape(strings.TrimSuffix(name, slotExt))
		if err != nil {
			slog.Warn("skipping slot file with undecodable name", "file", name, "error", err)
			continue
		}

		content, err := os.ReadFile(filepath.Join(p.DataDir, name))
		if err != nil {
			slog.Warn("could not read slot file", "file", name, "error", err)
			continue
		}
		allData[key] = content
	}
	return allData, nil
}
