package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CachingStore wraps a Store and materializes opened blobs into a local
// cache directory, so a vocabulary artifact served from an object store is
// downloaded once and reused across restarts. Cache hits never touch the
// inner store.
type CachingStore struct {
	inner Store
	dir   string

	mu sync.Mutex
}

// NewCachingStore creates a CachingStore writing cached blobs under dir.
func NewCachingStore(inner Store, dir string) *CachingStore {
	return &CachingStore{inner: inner, dir: dir}
}

// Open returns the cached copy of name, fetching and caching it from the
// inner store on a miss. Concurrent opens of the same name are serialized
// so the blob is fetched at most once.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if f, err := os.Open(path); err == nil {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &localBlob{File: f, size: info.Size()}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := s.fill(ctx, name, path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &localBlob{File: f, size: info.Size()}, nil
}

// fill downloads name into path via a temp file so a failed fetch never
// leaves a truncated cache entry behind.
func (s *CachingStore) fill(ctx context.Context, name, path string) error {
	blob, err := s.inner.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ Store = (*CachingStore)(nil)
