// Package assets keeps the price-board image as a single-slot register: every
// successful upload replaces whatever the namespace held before.
package assets

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/i474232898/agro-portal/internal/logger"
)

// DefaultMaxBytes is the upload size limit (inclusive).
const DefaultMaxBytes = 5 * 1024 * 1024

// Config describes the namespace served by a Store.
type Config struct {
	Namespace    string
	NamePrefix   string
	PublicBase   string
	FallbackPath string
	MaxBytes     int64
}

// Store owns one namespace of a Backend. No other component writes to it.
type Store struct {
	backend Backend
	locker  Locker
	cfg     Config
	now     func() time.Time
}

// NewStore creates a Store. A nil locker defaults to a LocalLocker.
func NewStore(backend Backend, locker Locker, cfg Config) *Store {
	if cfg.Namespace == "" {
		cfg.Namespace = "pizarra"
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = cfg.Namespace
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Store{
		backend: backend,
		locker:  locker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Namespace returns the namespace this store owns.
func (s *Store) Namespace() string {
	return s.cfg.Namespace
}

// FallbackPath is served when the namespace is empty.
func (s *Store) FallbackPath() string {
	return s.cfg.FallbackPath
}

// NormalizeType maps a declared type to a file extension. It accepts png,
// jpeg and jpg with or without the image/ prefix.
func NormalizeType(declared string) (ext string, err error) {
	t := strings.ToLower(strings.TrimSpace(declared))
	t = strings.TrimPrefix(t, "image/")
	switch t {
	case "png", "jpeg", "jpg":
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, declared)
	}
}

// Upload validates data and replaces the namespace contents with it. Type and
// size are checked before any backend call. Replacement runs under the
// namespace lock: list, delete all, write. A failure after the delete step
// leaves the namespace empty and is reported as *StorageError.
func (s *Store) Upload(ctx context.Context, data []byte, declaredType string) (string, error) {
	ext, err := NormalizeType(declaredType)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return "", fmt.Errorf("%w: %s exceeds the %s limit",
			ErrTooLarge, humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(s.cfg.MaxBytes)))
	}

	unlock, err := s.locker.Lock(ctx, s.cfg.Namespace)
	if err != nil {
		return "", &StorageError{Op: "lock", Err: err}
	}
	defer unlock()

	existing, err := s.backend.List(ctx, s.cfg.Namespace)
	if err != nil {
		return "", &StorageError{Op: "list", Err: err}
	}
	if len(existing) > 0 {
		names := make([]string, 0, len(existing))
		for _, o := range existing {
			names = append(names, o.Name)
		}
		if err := s.backend.Delete(ctx, s.cfg.Namespace, names...); err != nil {
			return "", &StorageError{Op: "delete", Err: err}
		}
		logger.Debug("assets: removed %d previous object(s) from %s", len(names), s.cfg.Namespace)
	}

	now := s.now()
	name := fmt.Sprintf("%s-%d.%s", s.cfg.NamePrefix, now.UnixMilli(), ext)
	if err := s.backend.Put(ctx, s.cfg.Namespace, name, data); err != nil {
		return "", &StorageError{Op: "write", Err: err}
	}

	logger.Info("assets: stored %s (%s) in %s", name, humanize.IBytes(uint64(len(data))), s.cfg.Namespace)
	return s.publicURL(name, now), nil
}

// Latest returns the newest object in the namespace, if any.
func (s *Store) Latest(ctx context.Context) (Object, bool, error) {
	objects, err := s.backend.List(ctx, s.cfg.Namespace)
	if err != nil {
		return Object{}, false, &StorageError{Op: "list", Err: err}
	}
	if len(objects) == 0 {
		return Object{}, false, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].CreatedAt.Equal(objects[j].CreatedAt) {
			return objects[i].CreatedAt.After(objects[j].CreatedAt)
		}
		return objects[i].Name > objects[j].Name
	})
	return objects[0], true, nil
}

// Current returns the public URL of the newest object, or the fallback path
// when the namespace is empty or cannot be listed.
func (s *Store) Current(ctx context.Context) string {
	obj, ok, err := s.Latest(ctx)
	if err != nil {
		logger.Warn("assets: %v; serving fallback", err)
		return s.cfg.FallbackPath
	}
	if !ok {
		return s.cfg.FallbackPath
	}
	return s.publicURL(obj.Name, obj.CreatedAt)
}

// Open reads an object of this namespace for serving.
func (s *Store) Open(ctx context.Context, name string) ([]byte, Object, error) {
	return s.backend.Open(ctx, s.cfg.Namespace, name)
}

// publicURL builds <base>/<namespace>/<name>?t=<unix ms>. The query changes
// with every upload so clients never reuse a cached image.
func (s *Store) publicURL(name string, at time.Time) string {
	base := strings.TrimSuffix(s.cfg.PublicBase, "/")
	return fmt.Sprintf("%s/%s/%s?t=%d", base, url.PathEscape(s.cfg.Namespace), url.PathEscape(name), at.UnixMilli())
}
