// Package scan extracts recipe fields from a photo of a recipe card or
// cookbook page.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/providers"
)

// maxImageSize caps downloaded and uploaded images at 10MB
const maxImageSize = 10 << 20

// Analyzer turns an image into the recipe fields it could read.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (*models.Recipe, error)
}

// Service analyzes images with an LLM provider.
type Service struct {
	provider providers.Provider
	model    string
}

func NewService(provider providers.Provider, model string) *Service {
	return &Service{provider: provider, model: model}
}

func (s *Service) Analyze(ctx context.Context, filename string, data []byte) (*models.Recipe, error) {
	response, err := s.provider.Generate(ctx, providers.Config{
		Model:       s.model,
		Temperature: 0.1, // low temperature for consistent, factual output
		Prompt:      recipePrompt,
		Images:      [][]byte{data},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", filename, err)
	}
	r, err := parseRecipe(response)
	if err != nil {
		return nil, err
	}
	slog.Info("Extracted recipe from image", "file", filename, "title", r.Title, "ingredients", len(r.Ingredients))
	return r, nil
}

func parseRecipe(response string) (*models.Recipe, error) {
	raw, err := providers.ExtractJSON(response)
	if err != nil {
		slog.Warn("Model did not return JSON", "response", response)
		return nil, err
	}
	var r models.Recipe
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("failed to parse extracted recipe: %w", err)
	}
	// the model has no business assigning identity
	r.ID, r.UserID, r.CreatedAt = "", "", nil
	r.Image, r.SupportingImages = "", nil
	return &r, nil
}

// RecipeAPI is the recipe API's analyze endpoint.
type RecipeAPI interface {
	AnalyzeImage(ctx context.Context, filename string, data []byte) (*models.Recipe, error)
}

// Remote analyzes images through the recipe API.
type Remote struct {
	api RecipeAPI
}

func NewRemote(api RecipeAPI) *Remote {
	return &Remote{api: api}
}

func (r *Remote) Analyze(ctx context.Context, filename string, data []byte) (*models.Recipe, error) {
	return r.api.AnalyzeImage(ctx, filename, data)
}

// LoadImage reads an image from a local path or an http(s) URL and checks
// that it really is an image.
func LoadImage(ctx context.Context, client *http.Client, src string) (string, []byte, error) {
	var (
		data []byte
		err  error
		name string
	)
	if draft.LooksRemote(src) {
		data, err = fetch(ctx, client, src)
		name = filepath.Base(strings.SplitN(src, "?", 2)[0])
	} else {
		data, err = readFile(src)
		name = filepath.Base(src)
	}
	if err != nil {
		return "", nil, err
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return "", nil, fmt.Errorf("%s is not an image (detected %s)", name, mt.String())
	}
	return name, data, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > maxImageSize {
		return nil, fmt.Errorf("image %s is larger than %d bytes", path, maxImageSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image %s is larger than %d bytes", url, maxImageSize)
	}
	return data, nil
}

const recipePrompt = `You are an experienced cookbook editor. Read the recipe shown in the image (a recipe card, a cookbook page or a screenshot) and transcribe it.

INSTRUCTIONS:
1. Copy the title as written.
2. List each ingredient with its quantity as one entry, in the order shown.
3. List each instruction step as one entry, without leading numbers.
4. Write a one-sentence highlight describing the dish.
5. Pick a single tag: Breakfast, Lunch, Dinner, Dessert, Snack or Drink.
6. If nutrition facts are printed, copy them as name/amount pairs. Do not invent them.
7. If something is unreadable, leave it out rather than guessing.

OUTPUT FORMAT:
Respond with ONLY a JSON object in the following format:

{
  "title": "Recipe title",
  "highlight": "One sentence",
  "tag": "Dinner",
  "ingredients": ["2 cups flour", "..."],
  "instructions": ["Preheat the oven to 180C.", "..."],
  "nutrition_info": {"Calories": "350"}
}`
