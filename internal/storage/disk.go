// Package storage keeps uploaded avatar images.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// MaxAvatarBytes is the largest avatar accepted.
const MaxAvatarBytes = 2 << 20

var (
	ErrTooLarge        = errors.New("storage: file too large")
	ErrUnsupportedType = errors.New("storage: unsupported image type")
)

// extensions maps the sniffed content types that are accepted to the file
// extension they are stored under.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore saves an image and returns the reference users.avatar_url
// stores for it. Delete removes a saved image by that reference.
type AvatarStore interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Disk stores avatars as files in one directory and serves them under
// urlPrefix.
type Disk struct {
	dir       string
	urlPrefix string
}

var _ AvatarStore = (*Disk)(nil)

// NewDisk creates dir if needed.
func NewDisk(dir, urlPrefix string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir %s: %w", dir, err)
	}
	return &Disk{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir is the directory files are written to.
func (d *Disk) Dir() string {
	return d.dir
}

// Save reads at most MaxAvatarBytes from r, checks the image type from the
// content itself and writes it under a fresh xid name. The type the client
// declared is never consulted.
func (d *Disk) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: reading upload: %w", err)
	}
	if len(data) > MaxAvatarBytes {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	detected := http.DetectContentType(data)
	ext, ok := extensions[detected]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
	}

	name := xid.New().String() + ext
	path := filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", name, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}

	return d.urlPrefix + "/" + name, nil
}

// Delete removes the file behind ref. References outside urlPrefix, such
// as the default avatar or a GitHub avatar, are left alone.
func (d *Disk) Delete(ctx context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, d.urlPrefix+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}
