// Package checkpoint wires the truck entry checkpoint: the driver registry,
// the entry log, code images and the service on top of them.
package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"

	"truckgate/internal/checkpoint/codeimage"
	"truckgate/internal/checkpoint/handler"
	"truckgate/internal/checkpoint/service"
	"truckgate/internal/checkpoint/store/entrylog"
	"truckgate/internal/checkpoint/store/registry"
	"truckgate/internal/platform/config"
	"truckgate/pkg/platform/fsutil"
)

// PublicImagePrefix is the URL prefix of generated images, relative to the
// server root.
const PublicImagePrefix = "static/qr_codes"

// Service exposes the checkpoint operations.
type Service = service.Service

// Handler wires HTTP endpoints to the checkpoint service.
type Handler = handler.Handler

// ErrDataDirInUse is returned when another process has the data directory open.
var ErrDataDirInUse = errors.New("data directory in use")

// Stores groups the persisted state under one storage configuration.
type Stores struct {
	Registry *registry.FileStore
	Entries  *entrylog.FileStore
	Images   *codeimage.Renderer

	lock *fsutil.Lock
}

// OpenStores creates missing directories and documents, then loads both
// stores. The data directory stays locked until Close so that one process
// owns the in-memory state. A corrupt or diverged store is an error.
func OpenStores(cfg config.Storage) (*Stores, error) {
	for _, dir := range []string{cfg.DataDir, cfg.QRDir()} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	lock, err := fsutil.TryLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, fsutil.ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrDataDirInUse, cfg.DataDir)
		}
		return nil, fmt.Errorf("lock data directory: %w", err)
	}
	reg, err := registry.Open(cfg.DriversPath())
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("open driver registry: %w", err)
	}
	entries, err := entrylog.Open(cfg.EntryJSONPath(), cfg.EntryCSVPath())
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("open entry log: %w", err)
	}
	return &Stores{
		Registry: reg,
		Entries:  entries,
		Images:   codeimage.New(cfg.QRDir(), PublicImagePrefix),
		lock:     lock,
	}, nil
}

// Close releases the data directory.
func (s *Stores) Close() error {
	return s.lock.Release()
}

// NewService constructs the checkpoint service over s.
func NewService(s *Stores, opts ...service.Option) *Service {
	return service.New(s.Registry, s.Entries, s.Images, opts...)
}

// NewHandler constructs the HTTP handler for the checkpoint routes.
func NewHandler(s *Service, logger *slog.Logger, opts ...handler.Option) *Handler {
	return handler.New(s, logger, opts...)
}
