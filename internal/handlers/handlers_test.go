package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/recipeapi"
	"github.com/larder-app/larder/internal/reconcile"
	"github.com/larder-app/larder/internal/storage"
	"github.com/larder-app/larder/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct{ user *models.User }

func (f fakeIdentity) CurrentUser(context.Context) (*models.User, error) {
	if f.user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return f.user, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(context.Context, string, []byte) (*models.Recipe, error) {
	return &models.Recipe{
		Title:        "Pancakes",
		Ingredients:  []string{"flour", "milk", "egg"},
		Instructions: []string{"Whisk", "Fry"},
	}, nil
}

// recipeBackend stands in for the recipe API.
type recipeBackend struct {
	mu      sync.Mutex
	saved   []map[string]json.RawMessage
	updated []map[string]json.RawMessage
}

func (b *recipeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /save-recipe", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Recipe map[string]json.RawMessage `json:"recipe"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.saved = append(b.saved, body.Recipe)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true,"id":77}`)
	})
	mux.HandleFunc("PATCH /update-recipe", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.updated = append(b.updated, body)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("GET /api/recipes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"recipes":[{"id":42,"user_id":"u1","title":"Soup","ingredients":["water"],"instructions":["Boil"],"image":"https://cdn.test/soup.jpg"}]}`)
	})
	return mux
}

type testEnv struct {
	server  *httptest.Server
	backend *recipeBackend
	blobDir string
}

func newTestEnv(t *testing.T, user *models.User) *testEnv {
	t.Helper()
	backend := &recipeBackend{}
	api := httptest.NewServer(backend.handler())
	t.Cleanup(api.Close)

	uploadsDir := t.TempDir()
	client := recipeapi.New(api.URL, api.Client())
	identity := fakeIdentity{user: user}
	blobs := storage.NewDiskStore(uploadsDir, "http://larder.test")

	h := New(Options{
		Sessions:   storage.New(0),
		Saver:      reconcile.New(identity, upload.NewCoordinator(blobs), client),
		Analyzer:   fakeAnalyzer{},
		Recipes:    client,
		Identity:   identity,
		UploadsDir: uploadsDir,
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, backend: backend, blobDir: uploadsDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) createDraft(t *testing.T, body any) editor.View {
	t.Helper()
	resp, data := e.do(t, http.MethodPost, "/api/drafts", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var v editor.View
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateAddUploadSave(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)
	assert.Equal(t, "create", v.Mode)

	resp, data := env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{"title": "Tacos"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	for _, label := range []string{"corn tortilla", "beans"} {
		resp, data = env.do(t, http.MethodPost, "/api/drafts/"+v.ID+"/ingredients", map[string]any{"op": "add", "label": label})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	}

	body, contentType := multipartBody(t, "files", map[string][]byte{"tacos.png": pngBytes(t)})
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/drafts/"+v.ID+"/images", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	resp, data = env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = env.do(t, http.MethodPost, "/api/drafts/"+v.ID+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var saved struct {
		ID    models.ID   `json:"id"`
		Mode  string      `json:"mode"`
		Draft editor.View `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, models.ID("77"), saved.ID)
	assert.Empty(t, saved.Draft.Title, "a created draft starts over")

	require.Len(t, env.backend.saved, 1)
	sent := env.backend.saved[0]
	assert.JSONEq(t, `"Tacos"`, string(sent["title"]))
	assert.JSONEq(t, `["corn tortilla","beans"]`, string(sent["ingredients"]))
	assert.JSONEq(t, `[]`, string(sent["supporting_images"]))

	var imageURL string
	require.NoError(t, json.Unmarshal(sent["image"], &imageURL))
	require.True(t, strings.HasPrefix(imageURL, "http://larder.test/static/uploads/u1/recipe_"), imageURL)

	uploaded, err := filepath.Glob(filepath.Join(env.blobDir, "u1", "recipe_*_0.jpg"))
	require.NoError(t, err)
	assert.Len(t, uploaded, 1)

	resp, _ = env.do(t, http.MethodGet, strings.TrimPrefix(imageURL, "http://larder.test"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)
	v := env.createDraft(t, nil)
	env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{"title": "Tacos"})

	resp, data := env.do(t, http.MethodPost, "/api/drafts/"+v.ID+"/save", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(data), "Please sign in first.")
	assert.Empty(t, env.backend.saved)

	resp, data = env.do(t, http.MethodGet, "/api/drafts/"+v.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"title":"Tacos"`, "draft kept after a failed save")
}

func TestSaveEmptyTitle(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/drafts/"+v.ID+"/save", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestEditDraftSavesUpdate(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, map[string]any{"recipe_id": 42})
	assert.Equal(t, "update", v.Mode)
	assert.Equal(t, "Soup", v.Title)
	require.Len(t, v.Images, 1)

	env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{"title": "Better Soup", "nutrition_info": map[string]string{"Calories": "90"}})
	resp, data := env.do(t, http.MethodPost, "/api/drafts/"+v.ID+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	require.Len(t, env.backend.updated, 1)
	sent := env.backend.updated[0]
	assert.JSONEq(t, `42`, string(sent["id"]))
	assert.JSONEq(t, `"Better Soup"`, string(sent["title"]))
	assert.JSONEq(t, `"https://cdn.test/soup.jpg"`, string(sent["image"]))
	assert.JSONEq(t, `{"Calories":"90"}`, string(sent["nutrition_info"]))

	entries, err := os.ReadDir(env.blobDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "remote images are not uploaded again")
}

func TestChipErrors(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)
	base := "/api/drafts/" + v.ID

	resp, _ := env.do(t, http.MethodPost, base+"/steps", map[string]any{"op": "remove", "index": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, base+"/steps", map[string]any{"op": "commit_edit", "label": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, base+"/steps", map[string]any{"op": "juggle"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, base+"/garnishes", map[string]any{"op": "add", "label": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/drafts/missing/steps", map[string]any{"op": "add", "label": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChipEditFlow(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)
	base := "/api/drafts/" + v.ID + "/steps"

	env.do(t, http.MethodPost, base, map[string]any{"op": "add", "label": "Chop"})
	env.do(t, http.MethodPost, base, map[string]any{"op": "add", "label": "Fry"})
	env.do(t, http.MethodPost, base, map[string]any{"op": "begin_edit", "index": 1})
	_, data := env.do(t, http.MethodPost, base, map[string]any{"op": "commit_edit", "label": "Fry gently"})

	var view editor.View
	require.NoError(t, json.Unmarshal(data, &view))
	require.Len(t, view.Steps.Items, 2)
	assert.Equal(t, "Fry gently", view.Steps.Items[1].Label)
	assert.Nil(t, view.Steps.Editing)

	keys := []string{view.Steps.Items[1].Key, view.Steps.Items[0].Key}
	_, data = env.do(t, http.MethodPost, base, map[string]any{"op": "reorder", "keys": keys})
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "Fry gently", view.Steps.Items[0].Label)

	resp, _ := env.do(t, http.MethodPost, base, map[string]any{"op": "reorder", "keys": keys[:1]})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImages(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)
	base := "/api/drafts/" + v.ID + "/images"

	resp, data := env.do(t, http.MethodPost, base, map[string]any{"image_url": "https://cdn.test/a.jpg"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, _ = env.do(t, http.MethodPost, base, map[string]any{"image_url": "https://cdn.test/b.jpg"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = env.do(t, http.MethodPut, base+"/order", map[string]any{"order": []int{1, 0}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var view editor.View
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "https://cdn.test/b.jpg", view.DefaultImage.Value)

	resp, _ = env.do(t, http.MethodPut, base+"/order", map[string]any{"order": []int{0, 0}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = env.do(t, http.MethodDelete, base+"/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "https://cdn.test/a.jpg", view.DefaultImage.Value)

	resp, _ = env.do(t, http.MethodDelete, base+"/5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, base, map[string]any{"image_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsNonImages(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)

	body, contentType := multipartBody(t, "file", map[string][]byte{"notes.txt": []byte("not an image")})
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/drafts/"+v.ID+"/images", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, _ := env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeMergesFields(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)

	body, contentType := multipartBody(t, "file", map[string][]byte{"card.png": pngBytes(t)})
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/drafts/"+v.ID+"/analyze", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, data := env.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var out struct {
		Draft editor.View `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Pancakes", out.Draft.Title)
	assert.Len(t, out.Draft.Ingredients.Items, 3)
	require.Len(t, out.Draft.Images, 1)
	assert.Equal(t, "local", out.Draft.Images[0].Kind.String())
}

func TestDiscard(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/drafts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/drafts/"+v.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/drafts/"+v.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})

	resp, _ := env.do(t, http.MethodGet, "/static/uploads/missing.jpg", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPatchRenamesNutrientsInOrder(t *testing.T) {
	env := newTestEnv(t, &models.User{ID: "u1"})
	v := env.createDraft(t, nil)

	resp, data := env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{
		"nutrition_info": map[string]string{"a": "1", "b": "2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{
		"rename_nutrients": []map[string]string{
			{"from": "b", "to": "c"},
			{"from": "a", "to": "b"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var got editor.View
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.NutritionInfo{"b": "1", "c": "2"}, got.NutritionInfo)

	// Renaming onto a nutrient that still exists would drop its amount.
	resp, data = env.do(t, http.MethodPatch, "/api/drafts/"+v.ID, map[string]any{
		"rename_nutrients": []map[string]string{
			{"from": "b", "to": "x"},
			{"from": "c", "to": "x"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	resp, data = env.do(t, http.MethodGet, "/api/drafts/"+v.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.NutritionInfo{"b": "1", "c": "2"}, got.NutritionInfo)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", &domain.ValidationError{Err: domain.ErrUnauthenticated}, http.StatusUnauthorized},
		{"validation", &domain.ValidationError{Field: "title", Err: domain.ErrEmptyTitle}, http.StatusUnprocessableEntity},
		{"save in progress", domain.ErrSaveInProgress, http.StatusConflict},
		{"discarded", domain.ErrDraftDiscarded, http.StatusGone},
		{"upload", &domain.UploadError{Total: 1, Failures: []domain.ImageFailure{{Err: errors.New("boom")}}}, http.StatusBadGateway},
		{"unreadable image", &domain.UploadError{Total: 1, Failures: []domain.ImageFailure{{
			Err: fmt.Errorf("failed to read image: %w", errors.Join(domain.ErrPermissionDenied, os.ErrPermission)),
		}}}, http.StatusForbidden},
		{"server", &domain.ServerError{Op: "save", StatusCode: 500}, http.StatusBadGateway},
		{"not found", fmt.Errorf("recipe 9: %w", domain.ErrNotFound), http.StatusNotFound},
		{"bad index", domain.ErrIndexOutOfRange, http.StatusBadRequest},
		{"other", errors.New("odd"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

// blockingSaver holds a save open until release is closed.
type blockingSaver struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSaver) Save(ctx context.Context, st draft.State) (reconcile.Result, error) {
	close(b.started)
	select {
	case <-b.release:
		return reconcile.Result{ID: "1", Mode: st.Mode}, nil
	case <-ctx.Done():
		return reconcile.Result{}, ctx.Err()
	}
}

func TestImagesRefusedDuringSaveLeaveNoFiles(t *testing.T) {
	uploadsDir := t.TempDir()
	sessions := storage.New(0)
	saver := &blockingSaver{started: make(chan struct{}), release: make(chan struct{})}
	h := New(Options{Sessions: sessions, Saver: saver, Analyzer: fakeAnalyzer{}, UploadsDir: uploadsDir})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	session := editor.NewSession(draft.New())
	sessions.Set(session.ID, session)

	done := make(chan error, 1)
	go func() {
		_, err := session.Save(context.Background(), saver)
		done <- err
	}()
	<-saver.started

	for _, endpoint := range []string{"images", "analyze"} {
		body, contentType := multipartBody(t, "file", map[string][]byte{"tacos.png": pngBytes(t)})
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/drafts/"+session.ID+"/"+endpoint, body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentType)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode, endpoint)
	}

	entries, err := os.ReadDir(filepath.Join(uploadsDir, "drafts"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)

	close(saver.release)
	require.NoError(t, <-done)
}

func TestDiscardStagedKeepsEarlierPicks(t *testing.T) {
	h := New(Options{UploadsDir: t.TempDir()})
	data := pngBytes(t)

	first, err := h.processImageFile(data, "a.png")
	require.NoError(t, err)
	assert.True(t, first.created)

	again, err := h.processImageFile(data, "a.png")
	require.NoError(t, err)
	assert.False(t, again.created)
	assert.Equal(t, first.Path, again.Path)

	h.discardStaged(again)
	assert.FileExists(t, first.Path)

	h.discardStaged(first)
	assert.NoFileExists(t, first.Path)
}
