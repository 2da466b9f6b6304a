// Package auth signs users in against Supabase GoTrue and keeps the session
// on disk between CLI invocations.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/models"
)

// Session is a signed-in user plus the tokens GoTrue issued.
type Session struct {
	AccessToken  string      `json:"access_token" yaml:"access_token"`
	RefreshToken string      `json:"refresh_token" yaml:"refresh_token"`
	ExpiresAt    time.Time   `json:"-" yaml:"expires_at"`
	User         models.User `json:"user" yaml:"user"`
}

// Expired reports whether the access token is past its expiry. A zero
// expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Client struct {
	baseURL    string
	anonKey    string
	store      *FileStore
	HTTPClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL, anonKey string, store *FileStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		store:      store,
		HTTPClient: httpClient,
		now:        time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         *models.User `json:"user"`
}

// SignUp registers a new account. When the project requires email
// confirmation no session is returned and the user has to log in later.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	if err := c.call(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{email, password}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		slog.Info("Signed up, confirmation pending", "email", email)
		return nil, nil
	}
	return c.keep(resp)
}

// Login exchanges email and password for a session and persists it.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	if err := c.call(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{email, password}, &resp); err != nil {
		return nil, err
	}
	return c.keep(resp)
}

// Logout revokes the token server side and removes the local session. The
// local session is removed even if revocation fails.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.store.Load()
	if errors.Is(err, domain.ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	callErr := c.call(ctx, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil, nil)
	if err := c.store.Clear(); err != nil {
		return err
	}
	if callErr != nil {
		slog.Warn("Token revocation failed", "err", callErr)
	}
	return nil
}

// CurrentUser returns the signed-in user from the stored session without
// a network call.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	u := sess.User
	return &u, nil
}

// Session loads the stored session, failing with ErrUnauthenticated when
// there is none or it has expired.
func (c *Client) Session() (*Session, error) {
	sess, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if sess.Expired(c.now()) {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthenticated)
	}
	return sess, nil
}

// WhoAmI asks GoTrue who the stored token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*models.User, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.call(ctx, http.MethodGet, "/auth/v1/user", sess.AccessToken, nil, &u); err != nil {
		var serr *domain.ServerError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
		}
		return nil, err
	}
	return &u, nil
}

func (c *Client) keep(resp tokenResponse) (*Session, error) {
	if resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("failed to sign in: response carried no session")
	}
	sess := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         *resp.User,
	}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if err := c.store.Save(sess); err != nil {
		return nil, err
	}
	slog.Info("Signed in", "email", sess.User.Email)
	return sess, nil
}

func (c *Client) call(ctx context.Context, method, path, token string, body, out any) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response body: %w", op, err)
	}
	return nil
}

// errorMessage pulls the human message out of a GoTrue error body.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(b, &e) == nil {
		for _, m := range []string{e.ErrorDescription, e.Msg, e.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(b))
}
