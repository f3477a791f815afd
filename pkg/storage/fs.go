package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// FSStore keeps files under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Name() string { return "fs" }

// SafeJoin maps a key to a path under the root. It returns "" for keys that
// would escape it.
func (s *FSStore) SafeJoin(key string) string {
	cleaned, err := CleanKey(key)
	if err != nil {
		return ""
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned))
}

func (s *FSStore) Location(key string) string {
	return s.SafeJoin(key)
}

func (s *FSStore) Read(ctx context.Context, key string) ([]byte, error) {
	p := s.SafeJoin(key)
	if p == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}

// Write replaces the file atomically: temp file in the same directory, then
// rename.
func (s *FSStore) Write(ctx context.Context, key string, data []byte) error {
	p := s.SafeJoin(key)
	if p == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p := s.SafeJoin(key)
	if p == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	err := os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}

func (s *FSStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	p := s.SafeJoin(key)
	if p == "" {
		return ObjectInfo{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return ObjectInfo{}, err
	}
	cleaned, _ := CleanKey(key)
	return ObjectInfo{
		Key:      cleaned,
		Name:     path.Base(cleaned),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	pre, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, filepath.FromSlash(pre))

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ObjectInfo{
			Key:      pre + entry.Name(),
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
