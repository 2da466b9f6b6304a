// Package chef answers cooking questions about a recipe and suggests new
// recipes, either through the recipe API or a configured LLM provider.
package chef

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/providers"
)

const (
	fallbackAnswer = "Sorry, something went wrong."
	// InspiredTag labels suggestions that came without a tag.
	InspiredTag = "AI Inspired"
)

// RecipeContext is the recipe as the chef sees it. Missing fields are
// filled with placeholders so the model never gets an empty list.
type RecipeContext struct {
	Title        string   `json:"title"`
	Tag          string   `json:"tag"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

func ContextFor(r models.Recipe) RecipeContext {
	c := RecipeContext{
		Title:        r.Title,
		Tag:          r.Tag.First("Uncategorized"),
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
	}
	if len(c.Ingredients) == 0 {
		c.Ingredients = []string{"No ingredients provided."}
	}
	if len(c.Instructions) == 0 {
		c.Instructions = []string{"No instructions provided."}
	}
	return c
}

type Chef interface {
	Ask(ctx context.Context, question string, r models.Recipe) (string, error)
	Inspire(ctx context.Context, prompt string) ([]models.Recipe, error)
}

// RecipeAPI is the subset of the recipe API client the remote chef uses.
type RecipeAPI interface {
	AskChef(ctx context.Context, question string, recipe any) (string, error)
	Inspire(ctx context.Context, prompt string) ([]models.Recipe, error)
}

// Remote delegates to the recipe API's AI endpoints.
type Remote struct {
	api RecipeAPI
}

func NewRemote(api RecipeAPI) *Remote {
	return &Remote{api: api}
}

func (c *Remote) Ask(ctx context.Context, question string, r models.Recipe) (string, error) {
	question, err := validPrompt("question", question)
	if err != nil {
		return "", err
	}
	answer, err := c.api.AskChef(ctx, question, ContextFor(r))
	if err != nil {
		return "", err
	}
	return orFallback(answer), nil
}

func (c *Remote) Inspire(ctx context.Context, prompt string) ([]models.Recipe, error) {
	prompt, err := validPrompt("prompt", prompt)
	if err != nil {
		return nil, err
	}
	return c.api.Inspire(ctx, prompt)
}

// Local talks to an LLM provider directly.
type Local struct {
	provider providers.Provider
	model    string
}

func NewLocal(provider providers.Provider, model string) *Local {
	return &Local{provider: provider, model: model}
}

func (c *Local) Ask(ctx context.Context, question string, r models.Recipe) (string, error) {
	question, err := validPrompt("question", question)
	if err != nil {
		return "", err
	}
	recipeJSON, err := json.MarshalIndent(ContextFor(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal recipe: %w", err)
	}

	answer, err := c.provider.Generate(ctx, providers.Config{
		Model:       c.model,
		Temperature: 0.7,
		Prompt:      fmt.Sprintf(askPrompt, recipeJSON, question),
	})
	if err != nil {
		return "", fmt.Errorf("failed to ask chef: %w", err)
	}
	return orFallback(answer), nil
}

func (c *Local) Inspire(ctx context.Context, prompt string) ([]models.Recipe, error) {
	prompt, err := validPrompt("prompt", prompt)
	if err != nil {
		return nil, err
	}

	response, err := c.provider.Generate(ctx, providers.Config{
		Model:       c.model,
		Temperature: 0.9,
		Prompt:      fmt.Sprintf(inspirePrompt, prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get inspiration: %w", err)
	}

	raw, err := providers.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var out struct {
		Recipes []models.Recipe `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}
	if out.Recipes == nil {
		out.Recipes = []models.Recipe{}
	}
	slog.Debug("Inspiration received", "recipes", len(out.Recipes))
	return out.Recipes, nil
}

func validPrompt(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &domain.ValidationError{Field: field, Err: domain.ErrEmptyPrompt}
	}
	return s, nil
}

func orFallback(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return fallbackAnswer
	}
	return strings.TrimSpace(answer)
}

const askPrompt = `You are a friendly, experienced home chef. Answer the cook's question about the recipe below in a few short paragraphs of markdown. Stay practical: substitutions, timing, technique.

RECIPE:
%s

QUESTION:
%s`

const inspirePrompt = `You are a creative chef suggesting recipes. The cook asked for: %q

Suggest three recipes. Respond with ONLY a JSON object in this format:

{
  "recipes": [
    {
      "title": "Recipe title",
      "highlight": "One sentence on why it is worth making",
      "tag": "Breakfast | Lunch | Dinner | Dessert | Snack",
      "ingredients": ["1 cup rice", "..."],
      "instructions": ["Rinse the rice.", "..."],
      "nutrition_info": {"Calories": "450", "Protein": "12g"}
    }
  ]
}`
