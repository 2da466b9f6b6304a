package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	store := New(time.Hour)
	s := editor.NewSession(draft.New())
	store.Set(s.ID, s)

	got, ok := store.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, store.GetAll(), 1)

	store.Delete(s.ID)
	_, ok = store.Get(s.ID)
	assert.False(t, ok)

	_, err := s.Apply(draft.SetTitle{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrDraftDiscarded, "deleted sessions are discarded")
}

func TestSessionStoreMissing(t *testing.T) {
	_, ok := New(0).Get("nope")
	assert.False(t, ok)
}

func TestDiskStore(t *testing.T) {
	dir := t.TempDir()
	d := NewDiskStore(dir, "http://localhost:8888/")

	require.NoError(t, d.Upload(context.Background(), "u1/recipe_1_0.jpg", []byte("img"), "image/jpeg"))

	data, err := os.ReadFile(filepath.Join(dir, "u1", "recipe_1_0.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
	assert.Equal(t, "http://localhost:8888/static/uploads/u1/recipe_1_0.jpg", d.PublicURL("u1/recipe_1_0.jpg"))
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	d := NewDiskStore(t.TempDir(), "")
	for _, key := range []string{"../x.jpg", "a/../../x.jpg", "/etc/passwd", ""} {
		assert.Error(t, d.Upload(context.Background(), key, []byte("x"), "image/jpeg"), key)
	}
}
