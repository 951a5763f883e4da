package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const metaSuffix = ".meta"

// DiskStore stores uploads on the local filesystem.
type DiskStore struct {
	dir     string
	maxSize int64

	mu    sync.RWMutex
	files map[string]*diskMeta
}

type diskMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDiskStore creates a DiskStore rooted at dir. A maxSize of 0 disables
// the size limit.
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStore{
		dir:     dir,
		maxSize: maxSize,
		files:   make(map[string]*diskMeta),
	}, nil
}

// Dir returns the store directory.
func (s *DiskStore) Dir() string { return s.dir }

// Save stores the file under a new random ID.
func (s *DiskStore) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	id := uuid.NewString()
	if err := s.SaveAs(ctx, id, filename, contentType, size, r); err != nil {
		return "", err
	}
	return id, nil
}

// SaveAs stores the file under id.
func (s *DiskStore) SaveAs(ctx context.Context, id, filename, contentType string, size int64, r io.Reader) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if s.maxSize > 0 && size > s.maxSize {
		return ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, id)

	// Write to a temp name first so a reader never sees a partial file.
	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1) // +1 to detect overflow
	}

	written, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if s.maxSize > 0 && written > s.maxSize {
		os.Remove(tmpPath)
		return ErrTooLarge
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	meta := &diskMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.files[id] = meta
	s.mu.Unlock()

	// Persist metadata so a restarted process can still serve the file.
	if err := s.saveMeta(id, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Open returns the file without removing it.
func (s *DiskStore) Open(ctx context.Context, id string) (*File, error) {
	meta, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, id)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &File{
		ID:          id,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		ModTime:     meta.CreatedAt,
		Path:        path,
		Reader:      f,
	}, nil
}

// Claim returns the file and deletes it when the File is closed.
func (s *DiskStore) Claim(ctx context.Context, id string) (*File, error) {
	file, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.files, id)
	s.mu.Unlock()

	file.Reader = &deleteOnCloseReader{
		File:     file.Reader.(*os.File),
		path:     file.Path,
		metaPath: s.metaPath(id),
	}
	return file, nil
}

// Cleanup removes files older than maxAge, including orphaned files with no
// metadata.
func (s *DiskStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	for id, meta := range s.files {
		if meta.CreatedAt.Before(cutoff) {
			delete(s.files, id)
			os.Remove(filepath.Join(s.dir, id))
			os.Remove(s.metaPath(id))
		}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			name := entry.Name()
			os.Remove(filepath.Join(s.dir, name))

			s.mu.Lock()
			delete(s.files, strings.TrimSuffix(name, metaSuffix))
			s.mu.Unlock()
		}
	}

	return nil
}

func (s *DiskStore) lookup(id string) (*diskMeta, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	meta, ok := s.files[id]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	// Not in memory: written by an earlier process.
	meta, err := s.loadMeta(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return meta, nil
}

func (s *DiskStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+metaSuffix)
}

func (s *DiskStore) saveMeta(id string, meta *diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(id), data, 0o644)
}

func (s *DiskStore) loadMeta(id string) (*diskMeta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// deleteOnCloseReader wraps a file and deletes it when closed.
type deleteOnCloseReader struct {
	*os.File
	path     string
	metaPath string
}

func (r *deleteOnCloseReader) Close() error {
	err := r.File.Close()
	os.Remove(r.path)
	os.Remove(r.metaPath)
	return err
}
