package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"
)

// ErrObjectNotFound is returned when a blob key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists raw file content by key.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PublicURL returns a directly reachable URL for the key, or "" when the
	// backend only serves content through the API.
	PublicURL(key string) string
}

// ObjectKey derives the blob key for a file id and its original name.
func ObjectKey(fileID, name string) string {
	return path.Join("files", fileID, sanitizeName(name))
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// ProgressReader reports the cumulative number of bytes read from the wrapped reader.
type ProgressReader struct {
	r      io.Reader
	mu     sync.Mutex
	read   int64
	report func(read int64)
}

// NewProgressReader wraps r; report is invoked after every successful read.
func NewProgressReader(r io.Reader, report func(read int64)) *ProgressReader {
	return &ProgressReader{r: r, report: report}
}

func (p *ProgressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		read := p.read
		p.mu.Unlock()
		if p.report != nil {
			p.report(read)
		}
	}
	return n, err
}
