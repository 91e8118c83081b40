package postgres

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dom/pulse/internal/domain"
)

// LocalStorage keeps objects on disk under dir/bucket/path and serves them
// from publicURL, typically through a static file server.
type LocalStorage struct {
	dir       string
	publicURL string
}

func NewLocalStorage(dir, publicURL string) *LocalStorage {
	return &LocalStorage{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *LocalStorage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &domain.RemoteError{Kind: domain.ErrTransport, Message: err.Error()}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !upsert {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &domain.RemoteError{Kind: domain.ErrConflict, Message: "The resource already exists"}
		}
		return &domain.RemoteError{Kind: domain.ErrTransport, Message: err.Error()}
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return &domain.RemoteError{Kind: domain.ErrTransport, Message: err.Error()}
	}
	return nil
}

func (s *LocalStorage) PublicURL(bucket, path string) string {
	return s.publicURL + "/" + bucket + "/" + strings.TrimLeft(path, "/")
}

// resolve rejects paths that would escape the bucket directory.
func (s *LocalStorage) resolve(bucket, path string) (string, error) {
	root := filepath.Join(s.dir, bucket)
	target := filepath.Join(root, filepath.FromSlash(path))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", domain.NewValidationError("path", "invalid object path")
	}
	return target, nil
}
