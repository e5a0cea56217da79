package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"roomlink-api/marketplace/domain"

	"github.com/google/uuid"
)

// DiskBlobStore grava uploads em Dir com nome <uuid><ext> e devolve URLPrefix+nome.
type DiskBlobStore struct {
	Dir       string
	URLPrefix string
	// MaxBytes <= 0 desliga o limite.
	MaxBytes int64
}

func NewDiskBlobStore(dir string, maxBytes int64) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskBlobStore{Dir: dir, URLPrefix: "/uploads/", MaxBytes: maxBytes}, nil
}

func (s *DiskBlobStore) Put(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + safeExt(originalName)

	f, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		return "", domain.ErrTooLarge
	}
	if err := os.Rename(tmp, filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path.Join(s.urlPrefix(), name), nil
}

func (s *DiskBlobStore) urlPrefix() string {
	if s.URLPrefix == "" {
		return "/uploads/"
	}
	return s.URLPrefix
}

// safeExt mantém só extensões curtas e alfanuméricas do nome original.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
