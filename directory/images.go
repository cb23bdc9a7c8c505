package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultMaxImageBytes = 5 << 20
	imageIDAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyz"
	imageIDLength        = 10
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type ImageStore interface {
	// Put stores the image and returns the URL it is served under.
	Put(ctx context.Context, filename string, body io.Reader) (string, error)
	// Remove deletes an image previously returned by Put.
	Remove(ctx context.Context, url string) error
}

// FSImageStore writes images under Root and serves them below BaseURL.
type FSImageStore struct {
	root     string
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

func NewFSImageStore(root, baseURL string, maxBytes int64) (*FSImageStore, error) {
	if root == "" {
		return nil, fmt.Errorf("image root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image root: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &FSImageStore{
		root:     root,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

func (s *FSImageStore) Root() string { return s.root }

func (s *FSImageStore) Put(ctx context.Context, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
	id, err := gonanoid.Generate(imageIDAlphabet, imageIDLength)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), id, ext)
	path := filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrImageTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return s.baseURL + "/" + name, nil
}

func (s *FSImageStore) Remove(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, s.baseURL+"/")
	if name == url || name == "" || name != filepath.Base(name) {
		return fmt.Errorf("image %q is not served by this store", url)
	}
	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
