package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/larder-app/larder/internal/auth"
	"github.com/larder-app/larder/internal/chef"
	"github.com/larder-app/larder/internal/config"
	"github.com/larder-app/larder/internal/gemini"
	"github.com/larder-app/larder/internal/ollama"
	"github.com/larder-app/larder/internal/openai"
	"github.com/larder-app/larder/internal/providers"
	"github.com/larder-app/larder/internal/recipeapi"
	"github.com/larder-app/larder/internal/reconcile"
	"github.com/larder-app/larder/internal/scan"
	"github.com/larder-app/larder/internal/storage"
	"github.com/larder-app/larder/internal/upload"
)

// app builds the clients every command shares from the loaded config.
type app struct {
	cfg        *config.Config
	flush      func()
	uploadsDir string
	publicURL  string
}

const defaultPublicURL = "http://localhost:8888"

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.HTTPTimeout}
}

func (a *app) auth() *auth.Client {
	return auth.NewClient(a.cfg.Supabase.URL, a.cfg.Supabase.AnonKey, auth.NewFileStore(a.cfg.SessionFile), a.httpClient())
}

func (a *app) api() *recipeapi.Client {
	return recipeapi.New(a.cfg.RecipeAPIURL, a.httpClient())
}

// blobStore uploads to Supabase Storage when configured and to local disk
// otherwise.
func (a *app) blobStore(identity *auth.Client) upload.BlobStore {
	if a.cfg.HasSupabase() {
		token := func() (string, error) {
			sess, err := identity.Session()
			if err != nil {
				return "", err
			}
			return sess.AccessToken, nil
		}
		return storage.NewSupabaseStore(a.cfg.Supabase.URL, a.cfg.Supabase.Bucket, a.cfg.Supabase.AnonKey, token, a.httpClient())
	}
	slog.Warn("Supabase is not configured, storing images on local disk", "dir", a.uploadsDir)
	return storage.NewDiskStore(a.uploadsDir, strings.TrimSuffix(a.publicURL, "/"))
}

func (a *app) reconciler(identity *auth.Client) *reconcile.Reconciler {
	images := upload.NewCoordinator(a.blobStore(identity), upload.WithConcurrency(a.cfg.Upload.Concurrency))
	return reconcile.New(identity, images, a.api())
}

// provider resolves an LLM provider by name. An empty name falls back to
// the configured provider; if that is empty too, ok is false and callers
// use the recipe API instead.
func (a *app) provider(name string) (p providers.Provider, model string, ok bool, err error) {
	if name == "" {
		name = a.cfg.AI.Provider
	}
	switch strings.ToLower(name) {
	case "":
		return nil, "", false, nil
	case "ollama":
		return ollama.New(a.cfg.AI.OllamaURL, a.httpClient()), a.cfg.AI.OllamaModel, true, nil
	case "openai":
		return openai.New(a.cfg.AI.OpenAIAPIKey, a.httpClient()), a.cfg.AI.OpenAIModel, true, nil
	case "gemini":
		return gemini.New(a.cfg.AI.GeminiAPIKey), a.cfg.AI.GeminiModel, true, nil
	default:
		return nil, "", false, fmt.Errorf("unsupported provider: %s (want one of %s)", name, strings.Join(providers.Names, ", "))
	}
}

func (a *app) chef(providerName, model string) (chef.Chef, error) {
	p, defaultModel, ok, err := a.provider(providerName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return chef.NewRemote(a.api()), nil
	}
	if model == "" {
		model = defaultModel
	}
	return chef.NewLocal(p, model), nil
}

func (a *app) analyzer(providerName, model string) (scan.Analyzer, error) {
	p, defaultModel, ok, err := a.provider(providerName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return scan.NewRemote(a.api()), nil
	}
	if model == "" {
		model = defaultModel
	}
	return scan.NewService(p, model), nil
}
