// Package recipeapi is the HTTP client for the recipe REST API.
package recipeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/models"
)

// DefaultBaseURL is where the recipe API listens in development.
const DefaultBaseURL = "http://localhost:3001"

// TagAll is the filter chip that means "no tag filter".
const TagAll = "All"

type Client struct {
	baseURL    string
	HTTPClient *http.Client
}

// New creates a client. A nil httpClient gets a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), HTTPClient: httpClient}
}

// Query filters a recipe listing.
type Query struct {
	UserID string
	Search string
	Tag    string
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	if q.Tag != "" && q.Tag != TagAll {
		v.Set("tag", q.Tag)
	}
	return v
}

type successResponse struct {
	Success bool      `json:"success"`
	ID      models.ID `json:"id,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type recipesResponse struct {
	Recipes []models.Recipe `json:"recipes"`
}

// SaveRecipe creates a recipe and returns the id the server assigned.
func (c *Client) SaveRecipe(ctx context.Context, r models.Recipe) (models.ID, error) {
	const op = "POST /save-recipe"
	var resp successResponse
	if err := c.doJSON(ctx, http.MethodPost, "/save-recipe", map[string]any{"recipe": r}, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &domain.ServerError{Op: op, StatusCode: http.StatusOK, Message: failureMessage(resp.Error)}
	}
	return resp.ID, nil
}

type updateRequest struct {
	ID               models.ID            `json:"id"`
	Title            string               `json:"title"`
	Highlight        string               `json:"highlight"`
	Tag              models.Tags          `json:"tag"`
	Ingredients      []string             `json:"ingredients"`
	Instructions     []string             `json:"instructions"`
	NutritionInfo    models.NutritionInfo `json:"nutrition_info"`
	Image            string               `json:"image"`
	SupportingImages []string             `json:"supporting_images"`
}

// UpdateRecipe patches the editable fields of an existing recipe.
func (c *Client) UpdateRecipe(ctx context.Context, id models.ID, fields models.Recipe) error {
	const op = "PATCH /update-recipe"
	body := updateRequest{
		ID:               id,
		Title:            fields.Title,
		Highlight:        fields.Highlight,
		Tag:              fields.Tag,
		Ingredients:      fields.Ingredients,
		Instructions:     fields.Instructions,
		NutritionInfo:    fields.NutritionInfo,
		Image:            fields.Image,
		SupportingImages: fields.SupportingImages,
	}
	var resp successResponse
	if err := c.doJSON(ctx, http.MethodPatch, "/update-recipe", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &domain.ServerError{Op: op, StatusCode: http.StatusOK, Message: failureMessage(resp.Error)}
	}
	return nil
}

// ListRecipes returns the user's recipes, optionally filtered.
func (c *Client) ListRecipes(ctx context.Context, q Query) ([]models.Recipe, error) {
	return c.list(ctx, "/api/recipes", q)
}

// ListFavorites returns the user's favorited recipes.
func (c *Client) ListFavorites(ctx context.Context, q Query) ([]models.Recipe, error) {
	return c.list(ctx, "/api/favorite-recipes", q)
}

func (c *Client) list(ctx context.Context, path string, q Query) ([]models.Recipe, error) {
	if vals := q.values(); len(vals) > 0 {
		path += "?" + vals.Encode()
	}
	var resp recipesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Recipes == nil {
		resp.Recipes = []models.Recipe{}
	}
	return resp.Recipes, nil
}

// FindRecipe looks a recipe up in the user's own list. The API has no
// single-recipe endpoint.
func (c *Client) FindRecipe(ctx context.Context, userID string, id models.ID) (*models.Recipe, error) {
	recipes, err := c.ListRecipes(ctx, Query{UserID: userID})
	if err != nil {
		return nil, err
	}
	for _, r := range recipes {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("recipe %s: %w", id, domain.ErrNotFound)
}

type favoriteRequest struct {
	UserID   string    `json:"user_id"`
	RecipeID models.ID `json:"recipe_id"`
}

// IsFavorited asks the server whether the user favorited a recipe. Every
// call is a fresh read.
func (c *Client) IsFavorited(ctx context.Context, userID string, recipeID models.ID) (bool, error) {
	var resp struct {
		IsFavorited bool `json:"isFavorited"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/favorite-recipe-check", favoriteRequest{userID, recipeID}, &resp); err != nil {
		return false, err
	}
	return resp.IsFavorited, nil
}

// SetFavorite adds (POST) or removes (DELETE) a favorite.
func (c *Client) SetFavorite(ctx context.Context, userID string, recipeID models.ID, favorite bool) error {
	method := http.MethodPost
	if !favorite {
		method = http.MethodDelete
	}
	var resp successResponse
	if err := c.doJSON(ctx, method, "/favorite-recipe", favoriteRequest{userID, recipeID}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &domain.ServerError{Op: method + " /favorite-recipe", StatusCode: http.StatusOK, Message: failureMessage(resp.Error)}
	}
	return nil
}

// AskChef sends a question about a recipe to the AI chef endpoint. The
// recipe should already carry the defaults from chef.RecipeContext.
func (c *Client) AskChef(ctx context.Context, question string, recipe any) (string, error) {
	var resp struct {
		Answer string `json:"answer"`
	}
	body := map[string]any{"question": question, "recipe": recipe}
	if err := c.doJSON(ctx, http.MethodPost, "/ask-ai-chef", body, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Inspire asks for recipe ideas matching a free-form prompt.
func (c *Client) Inspire(ctx context.Context, prompt string) ([]models.Recipe, error) {
	var resp recipesResponse
	if err := c.doJSON(ctx, http.MethodPost, "/inspire-recipes", map[string]string{"prompt": prompt}, &resp); err != nil {
		return nil, err
	}
	if resp.Recipes == nil {
		resp.Recipes = []models.Recipe{}
	}
	return resp.Recipes, nil
}

// AnalyzeImage uploads a recipe card photo and returns the fields the
// server could extract.
func (c *Client) AnalyzeImage(ctx context.Context, filename string, data []byte) (*models.Recipe, error) {
	const op = "POST /api/analyze-recipe-image"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-recipe-image", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.Recipe
	if err := c.do(req, op, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("Recipe API call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ServerError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response body: %w", op, err)
	}
	return nil
}

func failureMessage(msg string) string {
	if msg == "" {
		return "request was not successful"
	}
	return msg
}
