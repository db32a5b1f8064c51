package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vidstitch/api/internal/model"
)

// UploadService stores composition inputs on local disk. Files are kept
// under server-generated ids so client filenames never reach the
// filesystem; the retention sweep removes them later.
type UploadService struct {
	dir string
}

// NewUploadService creates a new upload service writing into dir
func NewUploadService(dir string) *UploadService {
	return &UploadService{
		dir: dir,
	}
}

// SaveUpload writes one uploaded file under a fresh id and returns its
// record. Only the extension of the client filename survives, and only
// when it looks harmless.
func (s *UploadService) SaveUpload(ctx context.Context, filename string, src io.Reader) (*model.UploadResponse, error) {
	id := uuid.New().String() + sanitizeExt(filename)
	path := filepath.Join(s.dir, id)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &model.UploadResponse{
		ID:        id,
		Size:      size,
		CreatedAt: time.Now(),
	}, nil
}

// Resolve maps an upload id to its path on disk. Ids that carry path
// separators or point at anything but a regular file are treated as
// unknown.
func (s *UploadService) Resolve(id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", ErrInputNotFound
	}

	path := filepath.Join(s.dir, id)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrInputNotFound
	}
	return path, nil
}

// DeleteUpload removes an uploaded file. Deleting an unknown id is a
// no-op so the operation stays idempotent.
func (s *UploadService) DeleteUpload(ctx context.Context, id string) error {
	if id == "" || filepath.Base(id) != id {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to delete upload %s: %v", id, err)
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

// sanitizeExt keeps a short alphanumeric extension from the client
// filename and falls back to .bin for anything else.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ".bin"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	return ext
}
