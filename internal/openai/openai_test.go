package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/larder-app/larder/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsImagesAsDataURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body.Model)
		require.Len(t, body.Messages, 1)
		require.Len(t, body.Messages[0].Content, 2)
		img := body.Messages[0].Content[1]["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"title\":\"Soup\"}"}}]}`)
	}))
	defer srv.Close()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	o := New("sk-test", srv.Client()).WithURL(srv.URL)
	out, err := o.Generate(context.Background(), providers.Config{Model: "gpt-4o", Prompt: "read this", Images: [][]byte{png}})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Soup"}`, out)
}

func TestGenerateWithoutKey(t *testing.T) {
	_, err := New("", nil).Generate(context.Background(), providers.Config{})
	assert.Error(t, err)
}
