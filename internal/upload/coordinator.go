// Package upload resolves a draft's image references to hosted URLs before
// a save.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel uploads for one save.
const DefaultConcurrency = 4

// BlobStore is the storage service images are uploaded to.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Coordinator uploads local images concurrently and hands back URLs in the
// same order as its input.
type Coordinator struct {
	store       BlobStore
	concurrency int
	readFile    func(string) ([]byte, error)
	now         func() time.Time
}

type Option func(*Coordinator)

func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(c *Coordinator) { c.readFile = read }
}

func NewCoordinator(store BlobStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		concurrency: DefaultConcurrency,
		readFile:    os.ReadFile,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ObjectKey names an uploaded image. Owner, timestamp and position keep keys
// unique even when the same file is picked twice.
func ObjectKey(ownerID string, ts time.Time, index int) string {
	return fmt.Sprintf("%s/recipe_%d_%d.jpg", ownerID, ts.UnixMilli(), index)
}

// Resolve returns one URL per reference, position for position. Remote
// references pass through untouched. If any upload fails the whole call
// fails with a *domain.UploadError and no URLs.
func (c *Coordinator) Resolve(ctx context.Context, refs []draft.ImageRef, ownerID string) ([]string, error) {
	urls := make([]string, len(refs))
	failures := make([]error, len(refs))
	ts := c.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, ref := range refs {
		if ref.IsRemote() {
			urls[i] = ref.Value
			continue
		}
		g.Go(func() error {
			u, err := c.uploadOne(gctx, ref.Value, ObjectKey(ownerID, ts, i))
			if err != nil {
				failures[i] = err
				return err
			}
			urls[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, c.aggregate(ctx, refs, failures)
	}
	return urls, nil
}

func (c *Coordinator) uploadOne(ctx context.Context, path, key string) (string, error) {
	data, err := c.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("failed to read image: %w", errors.Join(domain.ErrPermissionDenied, err))
		}
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("file is not an image (detected %s)", contentType)
	}

	if err := c.store.Upload(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	u := c.store.PublicURL(key)
	slog.Debug("Image uploaded", "path", path, "key", key, "bytes", len(data))
	return u, nil
}

// aggregate collects the real failures. Uploads cut short only because a
// sibling failed are left out unless the caller itself cancelled.
func (c *Coordinator) aggregate(ctx context.Context, refs []draft.ImageRef, failures []error) error {
	uerr := &domain.UploadError{Total: len(refs)}
	callerCancelled := ctx.Err() != nil
	for i, err := range failures {
		if err == nil {
			continue
		}
		if !callerCancelled && errors.Is(err, context.Canceled) {
			continue
		}
		uerr.Failures = append(uerr.Failures, domain.ImageFailure{Index: i, Source: refs[i].Value, Err: err})
	}
	if len(uerr.Failures) == 0 {
		for i, err := range failures {
			if err != nil {
				uerr.Failures = append(uerr.Failures, domain.ImageFailure{Index: i, Source: refs[i].Value, Err: err})
			}
		}
	}
	slog.Warn("Image upload failed", "failed", len(uerr.Failures), "total", len(refs))
	return uerr
}
