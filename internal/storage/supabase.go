package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larder-app/larder/internal/domain"
)

// TokenSource supplies the bearer token for storage requests.
type TokenSource func() (string, error)

// SupabaseStore uploads objects to a Supabase Storage bucket.
type SupabaseStore struct {
	baseURL    string
	bucket     string
	anonKey    string
	token      TokenSource
	HTTPClient *http.Client
}

func NewSupabaseStore(baseURL, bucket, anonKey string, token TokenSource, httpClient *http.Client) *SupabaseStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		anonKey:    anonKey,
		token:      token,
		HTTPClient: httpClient,
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	const op = "POST /storage/v1/object"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL("", key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	token := s.anonKey
	if s.token != nil {
		if token, err = s.token(); err != nil {
			return err
		}
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ServerError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return s.objectURL("public/", key)
}

func (s *SupabaseStore) objectURL(prefix, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s%s/%s", s.baseURL, prefix, url.PathEscape(s.bucket), strings.Join(segments, "/"))
}
