package domain

import (
	"context"
	"io"
)

// BlobStore guarda arquivos enviados e devolve a URL pública.
type BlobStore interface {
	Put(ctx context.Context, originalName string, r io.Reader) (url string, err error)
}
