package pins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/pinmap/assets"
	"github.com/MeKo-Tech/pinmap/internal/types"
)

// ErrNotFound is returned when a store has no saved collection yet.
var ErrNotFound = errors.New("pin collection not found")

// Source loads a pin collection.
type Source interface {
	Load(ctx context.Context) ([]types.Pin, error)
}

// Store is a Source that can also persist the whole collection.
type Store interface {
	Source
	Save(ctx context.Context, pins []types.Pin) error
}

// FileStore keeps the collection in a single JSON file.
type FileStore struct {
	Path string
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the collection. A missing file yields ErrNotFound.
func (s *FileStore) Load(_ context.Context) ([]types.Pin, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pins: %w", err)
	}
	list, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return list, nil
}

// Save writes the collection atomically through a temp file.
func (s *FileStore) Save(_ context.Context, list []types.Pin) error {
	if list == nil {
		list = []types.Pin{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pins: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pins-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write pins: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write pins: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

// Decode parses either a bare pin array or an export document.
func Decode(data []byte) ([]types.Pin, error) {
	var list []types.Pin
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Pins == nil {
		return nil, errors.New("document has no pins field")
	}
	return doc.Pins, nil
}

// Fallback returns a copy of the embedded fallback collection.
func Fallback() []types.Pin {
	list, err := Decode(assets.FallbackPins)
	if err != nil {
		panic(fmt.Sprintf("embedded fallback pins are invalid: %v", err))
	}
	return list
}
