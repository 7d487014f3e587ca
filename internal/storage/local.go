// Package storage keeps uploaded post media on local disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// PublicPrefix is the URL path the upload directory is served under.
const PublicPrefix = "/uploads/"

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// ErrUnsupportedMedia is returned for uploads that are neither images nor
// videos.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// StoredMedia describes a saved upload.
type StoredMedia struct {
	URL       string
	MediaType string
	MIME      string
}

// LocalMediaStore writes uploads into a directory on disk.
type LocalMediaStore struct {
	dir string
}

// NewLocalMediaStore creates the upload directory if needed.
func NewLocalMediaStore(dir string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalMediaStore{dir: dir}, nil
}

// Dir returns the directory uploads are written to.
func (s *LocalMediaStore) Dir() string {
	return s.dir
}

// Save sniffs r, rejects anything that is not an image or video and writes it
// under a fresh name.
func (s *LocalMediaStore) Save(ctx context.Context, r io.Reader) (*StoredMedia, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	header = header[:n]

	mtype := mimetype.Detect(header)
	kind := mediaKind(mtype.String())
	if kind == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mtype.String())
	}

	name := uuid.NewString() + mtype.Extension()
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(header), r)); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write media file: %w", err)
	}

	slog.DebugContext(ctx, "media stored", slog.String("file", name), slog.String("mime", mtype.String()))
	return &StoredMedia{URL: PublicPrefix + name, MediaType: kind, MIME: mtype.String()}, nil
}

// Remove deletes a file previously returned by Save. URLs that do not point
// into the store are ignored.
func (s *LocalMediaStore) Remove(url string) error {
	if !strings.HasPrefix(url, PublicPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(url, PublicPrefix))
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func mediaKind(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MediaImage
	case strings.HasPrefix(mime, "video/"):
		return models.MediaVideo
	default:
		return ""
	}
}
