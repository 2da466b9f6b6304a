package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

type fakeStore struct {
	mu      sync.Mutex
	uploads map[string]string
	delay   map[string]time.Duration
	fail    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string]string{}, delay: map[string]time.Duration{}, fail: map[string]error{}}
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	d, failErr := f.delay[key], f.fail[key]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failErr != nil {
		return failErr
	}
	f.mu.Lock()
	f.uploads[key] = contentType
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.test/" + key }

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestCoordinator(store *fakeStore, files map[string][]byte) *Coordinator {
	return NewCoordinator(store,
		WithClock(func() time.Time { return fixedNow }),
		WithFileReader(func(p string) ([]byte, error) {
			data, ok := files[p]
			if !ok {
				return nil, fs.ErrNotExist
			}
			return data, nil
		}),
	)
}

func TestResolvePreservesOrder(t *testing.T) {
	img := pngBytes(t)
	store := newFakeStore()
	// x finishes last so completion order differs from input order
	store.delay[ObjectKey("u1", fixedNow, 0)] = 30 * time.Millisecond

	c := newTestCoordinator(store, map[string][]byte{"/x.png": img, "/y.png": img})
	refs := []draft.ImageRef{
		draft.LocalImage("/x.png"),
		draft.RemoteImage("https://cdn.test/already.jpg"),
		draft.LocalImage("/y.png"),
	}

	urls, err := c.Resolve(context.Background(), refs, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.test/u1/recipe_1700000000000_0.jpg",
		"https://cdn.test/already.jpg",
		"https://cdn.test/u1/recipe_1700000000000_2.jpg",
	}, urls)
	assert.Equal(t, 2, store.count(), "remote images are not re-uploaded")
	assert.Equal(t, "image/png", store.uploads[ObjectKey("u1", fixedNow, 2)])
}

func TestResolveFailsAsAWhole(t *testing.T) {
	img := pngBytes(t)
	store := newFakeStore()
	store.fail[ObjectKey("u1", fixedNow, 0)] = errors.New("bucket full")

	c := newTestCoordinator(store, map[string][]byte{"/x.png": img, "/y.png": img})
	refs := []draft.ImageRef{draft.LocalImage("/x.png"), draft.LocalImage("/y.png")}

	urls, err := c.Resolve(context.Background(), refs, "u1")

	assert.Nil(t, urls)
	var uerr *domain.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 2, uerr.Total)
	require.Len(t, uerr.Failures, 1)
	assert.Equal(t, 0, uerr.Failures[0].Index)
	assert.Equal(t, "/x.png", uerr.Failures[0].Source)
}

func TestResolveReportsEveryFailedImage(t *testing.T) {
	c := newTestCoordinator(newFakeStore(), map[string][]byte{"/notes.txt": []byte("just text, not a picture")})
	refs := []draft.ImageRef{draft.LocalImage("/missing.png"), draft.LocalImage("/notes.txt")}

	_, err := c.Resolve(context.Background(), refs, "u1")

	var uerr *domain.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.NotEmpty(t, uerr.Failures)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolvePermissionDenied(t *testing.T) {
	c := NewCoordinator(newFakeStore(), WithFileReader(func(string) ([]byte, error) {
		return nil, fs.ErrPermission
	}))

	_, err := c.Resolve(context.Background(), []draft.ImageRef{draft.LocalImage("/locked.jpg")}, "u1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestResolveAllRemote(t *testing.T) {
	store := newFakeStore()
	c := newTestCoordinator(store, nil)

	urls, err := c.Resolve(context.Background(), []draft.ImageRef{draft.RemoteImage("https://a/b.jpg")}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/b.jpg"}, urls)
	assert.Zero(t, store.count())

	urls, err = c.Resolve(context.Background(), nil, "u1")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolveCallerCancelled(t *testing.T) {
	img := pngBytes(t)
	store := newFakeStore()
	store.delay[ObjectKey("u1", fixedNow, 0)] = time.Second
	c := newTestCoordinator(store, map[string][]byte{"/x.png": img})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Resolve(ctx, []draft.ImageRef{draft.LocalImage("/x.png")}, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
