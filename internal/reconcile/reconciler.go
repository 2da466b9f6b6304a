// Package reconcile turns a draft into a create or update request against
// the recipe API.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/models"
)

// Identity reports who is signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// ImageResolver uploads local images and returns URLs in input order.
type ImageResolver interface {
	Resolve(ctx context.Context, refs []draft.ImageRef, ownerID string) ([]string, error)
}

// RecipeStore is the persistence side of the recipe API.
type RecipeStore interface {
	SaveRecipe(ctx context.Context, r models.Recipe) (models.ID, error)
	UpdateRecipe(ctx context.Context, id models.ID, fields models.Recipe) error
}

// Result describes a completed save. Recipe is built from the local merge,
// never re-fetched from the server.
type Result struct {
	ID     models.ID
	Mode   draft.Mode
	Recipe models.Recipe
}

type Reconciler struct {
	identity Identity
	images   ImageResolver
	store    RecipeStore
}

func New(identity Identity, images ImageResolver, store RecipeStore) *Reconciler {
	return &Reconciler{identity: identity, images: images, store: store}
}

// Save validates the draft, uploads its local images and then creates or
// updates the recipe. Validation runs before any upload; the save request
// is sent only after every image has resolved. On failure nothing is
// retried and the caller keeps its draft.
func (r *Reconciler) Save(ctx context.Context, st draft.State) (Result, error) {
	user, err := r.currentUser(ctx)
	if err != nil {
		return Result{}, err
	}

	d := st.Draft()
	if strings.TrimSpace(d.Title) == "" {
		return Result{}, &domain.ValidationError{Field: "title", Err: domain.ErrEmptyTitle}
	}
	if st.Mode == draft.ModeUpdate && st.RecipeID == "" {
		return Result{}, &domain.ValidationError{Field: "id", Err: fmt.Errorf("recipe to update: %w", domain.ErrNotFound)}
	}

	urls, err := r.images.Resolve(ctx, st.Images.Refs(), user.ID)
	if err != nil {
		return Result{}, err
	}

	fields := Payload(d, urls)

	switch st.Mode {
	case draft.ModeUpdate:
		if err := r.store.UpdateRecipe(ctx, st.RecipeID, fields); err != nil {
			return Result{}, fmt.Errorf("failed to update recipe: %w", err)
		}
		merged := Merge(st.Base, fields)
		merged.ID = st.RecipeID
		slog.Info("Recipe updated", "id", st.RecipeID, "images", len(urls))
		return Result{ID: st.RecipeID, Mode: draft.ModeUpdate, Recipe: merged}, nil
	default:
		fields.UserID = user.ID
		id, err := r.store.SaveRecipe(ctx, fields)
		if err != nil {
			return Result{}, fmt.Errorf("failed to save recipe: %w", err)
		}
		fields.ID = id
		slog.Info("Recipe created", "id", id, "images", len(urls))
		return Result{ID: id, Mode: draft.ModeCreate, Recipe: fields}, nil
	}
}

func (r *Reconciler) currentUser(ctx context.Context) (*models.User, error) {
	user, err := r.identity.CurrentUser(ctx)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), err == nil && (user == nil || user.ID == ""):
		return nil, &domain.ValidationError{Field: "user", Err: domain.ErrUnauthenticated}
	case err != nil:
		return nil, fmt.Errorf("failed to look up current user: %w", err)
	}
	return user, nil
}

// Payload builds the persisted fields from a draft and its resolved image
// URLs. urls[0] becomes the cover image and the rest supporting images.
func Payload(d draft.Draft, urls []string) models.Recipe {
	primary, supporting, _ := draft.SplitImages(urls)
	return models.Recipe{
		Title:            strings.TrimSpace(d.Title),
		Highlight:        strings.TrimSpace(d.Highlight),
		Tag:              models.Tags(nonNil(d.Tag)),
		Ingredients:      nonNil(d.Ingredients),
		Instructions:     nonNil(d.Instructions),
		NutritionInfo:    d.NutritionInfo.Normalize(),
		Image:            primary,
		SupportingImages: nonNil(supporting),
	}
}

// Merge overlays saved fields on the record they came from, keeping the
// fields a draft never edits (owner, creation time).
func Merge(base *models.Recipe, fields models.Recipe) models.Recipe {
	if base == nil {
		return fields
	}
	out := base.Clone()
	out.Title = fields.Title
	out.Highlight = fields.Highlight
	out.Tag = fields.Tag
	out.Ingredients = fields.Ingredients
	out.Instructions = fields.Instructions
	out.NutritionInfo = fields.NutritionInfo
	out.Image = fields.Image
	out.SupportingImages = fields.SupportingImages
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
