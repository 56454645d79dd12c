package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploads writes item photos to local disk and serves them back under a
// public base path.
type Uploads struct {
	Dir        string
	MaxBytes   int64
	PublicBase string
}

var allowedPhotoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Save stores one uploaded photo under a random filename and returns its
// public URL.
func (u *Uploads) Save(fh *multipart.FileHeader) (string, error) {
	if u.MaxBytes > 0 && fh.Size > u.MaxBytes {
		return "", fmt.Errorf("file too large (max %d bytes)", u.MaxBytes)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedPhotoExts[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(u.Dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	reader := io.Reader(src)
	if u.MaxBytes > 0 {
		reader = io.LimitReader(src, u.MaxBytes+1)
	}
	n, err := io.Copy(dst, reader)
	if err != nil {
		return "", err
	}
	if u.MaxBytes > 0 && n > u.MaxBytes {
		_ = os.Remove(filepath.Join(u.Dir, name))
		return "", fmt.Errorf("file too large (max %d bytes)", u.MaxBytes)
	}
	base := strings.TrimRight(u.PublicBase, "/")
	if base == "" {
		base = "/uploads"
	}
	return base + "/" + name, nil
}
