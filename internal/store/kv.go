// Package store implements the on-disk key-value persistence used to cache
// tokens between runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Bucket is a flat key-value namespace with JSON-encoded values.
type Bucket interface {
	// Get unmarshals the stored value into v and reports whether the key exists.
	Get(key string, v any) (bool, error)
	// Set marshals v and stores it under key.
	Set(key string, v any) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(key string) error
	// Clear removes every key.
	Clear() error
	// Keys lists all stored keys.
	Keys() ([]string, error)
}

// File is a Bucket backed by a single JSON object file. The whole file is
// rewritten on every mutation; an unreadable or corrupt file reads as empty.
type File struct {
	path string
}

// NewFile creates a file-backed bucket at path. The file is created lazily.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) readAll() map[string]json.RawMessage {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return map[string]json.RawMessage{}
	}
	all := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return map[string]json.RawMessage{}
	}
	return all
}

func (f *File) writeAll(all map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, raw, 0o600)
}

func (f *File) Get(key string, v any) (bool, error) {
	raw, ok := f.readAll()[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (f *File) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	all := f.readAll()
	all[key] = raw
	return f.writeAll(all)
}

func (f *File) Delete(key string) error {
	all := f.readAll()
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return f.writeAll(all)
}

func (f *File) Clear() error {
	return f.writeAll(map[string]json.RawMessage{})
}

func (f *File) Keys() ([]string, error) {
	all := f.readAll()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return keys, nil
}
