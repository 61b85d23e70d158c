// Package codeimage renders issued codes as QR images and stores them where
// the static file server can reach them.
package codeimage

import (
	"fmt"
	"path"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"

	"truckgate/pkg/platform/fsutil"
)

const (
	defaultSize = 256
	filePerm    = 0o644
)

// Renderer encodes payloads as PNG QR codes under dir. Images are published
// to callers as publicPrefix/qr_<code>.png.
type Renderer struct {
	dir          string
	publicPrefix string
	size         int
	level        qrcode.RecoveryLevel
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the PNG edge length in pixels.
func WithSize(px int) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.size = px
		}
	}
}

// New constructs a Renderer writing into dir.
func New(dir, publicPrefix string, opts ...Option) *Renderer {
	r := &Renderer{
		dir:          dir,
		publicPrefix: publicPrefix,
		size:         defaultSize,
		level:        qrcode.Medium,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileName is the deterministic image name for code.
func FileName(code string) string {
	return "qr_" + code + ".png"
}

// Encode renders content as a PNG QR image.
func (r *Renderer) Encode(content []byte) ([]byte, error) {
	png, err := qrcode.Encode(string(content), r.level, r.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Write stores an encoded image for code and returns its public path.
func (r *Renderer) Write(code string, png []byte) (string, error) {
	if err := fsutil.EnsureDir(r.dir); err != nil {
		return "", err
	}
	if err := fsutil.AtomicWrite(r.FilePath(code), png, filePerm); err != nil {
		return "", fmt.Errorf("write qr image: %w", err)
	}
	return r.PublicPath(code), nil
}

// Remove deletes the image for code, if any.
func (r *Renderer) Remove(code string) error {
	return fsutil.RemoveIfExists(r.FilePath(code))
}

// FilePath is where the image for code lives on disk.
func (r *Renderer) FilePath(code string) string {
	return filepath.Join(r.dir, FileName(code))
}

// PublicPath is the path handed back to API callers.
func (r *Renderer) PublicPath(code string) string {
	return path.Join(r.publicPrefix, FileName(code))
}
