// Package storage is the upload collaborator: it stores cover images,
// thumbnails and gallery photos and hands back a stable URL.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileRoute is where uploads are served when the bucket is not public.
const FileRoute = "/api/v1/files/"

var ErrNotFound = errors.New("storage: object not found")

// Store is implemented by MinIOStorage and MemoryStorage.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// NewKey returns "<scope>/<uuid><ext>" for an uploaded file name, and false
// when the extension is not an accepted image type.
func NewKey(scope, filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	if !allowedExt[ext] {
		return "", false
	}
	scope = strings.Trim(strings.ToLower(scope), "/")
	if scope == "" || strings.Contains(scope, "..") {
		scope = "misc"
	}
	return scope + "/" + uuid.NewString() + ext, true
}

// MemoryStorage keeps uploads in memory. Used when MinIO is not configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memObject)}
}

func (m *MemoryStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = memObject{data: b, contentType: contentType}
	m.mu.Unlock()
	return FileRoute + key, nil
}

func (m *MemoryStorage) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}
