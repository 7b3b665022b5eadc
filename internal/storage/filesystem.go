package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileSystemAccount stores photos on the local disk and serves them under
// baseURL/files/{name}/{key}. A positive capacity in bytes makes the account
// report ErrQuota once it is full, which lets the fallback path run locally.
type FileSystemAccount struct {
	name     string
	basePath string
	baseURL  string
	capacity int64
	mu       sync.Mutex
}

func NewFileSystemAccount(name, basePath, baseURL string, capacity int64) *FileSystemAccount {
	return &FileSystemAccount{
		name:     name,
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		capacity: capacity,
	}
}

func (a *FileSystemAccount) Name() string {
	return a.name
}

// EnsureDir creates the storage directory if it doesn't exist.
func (a *FileSystemAccount) EnsureDir() error {
	if err := os.MkdirAll(a.basePath, 0o755); err != nil {
		return fmt.Errorf("create storage directory %s: %w", a.basePath, err)
	}
	return nil
}

func (a *FileSystemAccount) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.EnsureDir(); err != nil {
		return nil, err
	}
	return &fileSession{account: a}, nil
}

func (a *FileSystemAccount) used() (int64, error) {
	var total int64
	err := filepath.WalkDir(a.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure storage: %w", err)
	}
	return total, nil
}

// GetPath returns the absolute path of a stored object.
func (a *FileSystemAccount) GetPath(key string) (string, error) {
	stem := strings.TrimSuffix(key, filepath.Ext(key))
	if _, err := uuid.Parse(stem); err != nil || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(a.basePath, key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object %s not found", key)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	return path, nil
}

func (a *FileSystemAccount) link(key string) string {
	return a.baseURL + "/files/" + url.PathEscape(a.name) + "/" + url.PathEscape(key)
}

type fileSession struct {
	account *FileSystemAccount
}

func (s *fileSession) Upload(ctx context.Context, name string, size int64, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := s.account
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capacity > 0 {
		used, err := a.used()
		if err != nil {
			return nil, err
		}
		if used+size > a.capacity {
			return nil, fmt.Errorf("account %s: %w: %d of %d bytes used", a.name, ErrQuota, used, a.capacity)
		}
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	path := filepath.Join(a.basePath, key)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", path, err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write file: %w", err)
	}
	return &Object{Name: name, Size: n, Link: a.link(key)}, nil
}

func (s *fileSession) Close() error {
	return nil
}
