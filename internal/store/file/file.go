// Package file stores each key as <dir>/<key>.json, the layout the bot's
// data directory has always used.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jusunglee/mjpin/internal/store"
)

// Store implements store.Store on top of a directory of JSON files.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key")
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *Store) Read(_ context.Context, key string) (json.RawMessage, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, &store.Error{Op: "read", Key: key, Err: err}
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return store.EmptyObject, nil
	}
	if err != nil {
		return nil, &store.Error{Op: "read", Key: key, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return store.EmptyObject, nil
	}
	return json.RawMessage(data), nil
}

// Write replaces the file atomically: the document is written to a temp file
// in the same directory and renamed over the old one.
func (s *Store) Write(_ context.Context, key string, value json.RawMessage) error {
	p, err := s.path(key)
	if err != nil {
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	if !json.Valid(value) {
		return &store.Error{Op: "write", Key: key, Err: store.ErrInvalidJSON}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, p); err != nil {
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
