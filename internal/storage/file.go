package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmcfarlane/parley/internal/ident"
)

// FileBackend keeps one JSON file per key under a single directory.
//
// Writes go to a temp file in the same directory, are fsynced, and then
// renamed over the target, so a crash mid-write leaves either the old
// record or the new one, never a truncated mix. Readers rely on the same
// rename for isolation and take no lock.
type FileBackend struct {
	dir   string
	locks *LockTable
}

// NewFileBackend creates dir (and parents) if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, locks: NewLockTable()}, nil
}

func (b *FileBackend) path(key string) (string, error) {
	// Keys become file names, so they must pass the same charset check
	// as session identifiers before any path join.
	if !ident.Valid(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

func (b *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	path, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return data, nil
}

func (b *FileBackend) Store(_ context.Context, key string, data []byte) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}

	unlock := b.locks.Lock(key)
	defer unlock()

	tmp, err := os.CreateTemp(b.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync record %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close record %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace record %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) (bool, error) {
	path, err := b.path(key)
	if err != nil {
		return false, err
	}

	unlock := b.locks.Lock(key)
	defer unlock()

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", key, err)
	}
	return true, nil
}
