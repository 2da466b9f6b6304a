// Package draft is the in-memory editor for a recipe being created or
// edited. State is a plain value; Reduce applies one Action and returns the
// next State, so every step can be tested without a UI or network.
package draft

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/models"
)

// Mode decides whether saving creates a new record or patches an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// State is the whole editor: draft fields plus the two reorderable lists
// and the image set.
type State struct {
	Mode     Mode
	RecipeID models.ID
	// Base is a private copy of the record being edited, nil for new recipes.
	Base *models.Recipe

	Title       string
	Highlight   string
	Tags        []string
	Nutrition   models.NutritionInfo
	Ingredients ChipList
	Steps       ChipList
	Images      ImageSet
}

// New returns an empty draft for a new recipe.
func New() State {
	return State{Mode: ModeCreate, Nutrition: models.NutritionInfo{}}
}

// FromRecipe seeds an update draft from a persisted recipe. The recipe is
// deep-copied; its images are already remote unless they do not look like
// URLs.
func FromRecipe(r models.Recipe) State {
	base := r.Clone()
	nutrition := maps.Clone(base.NutritionInfo)
	if nutrition == nil {
		nutrition = models.NutritionInfo{}
	}
	var refs []ImageRef
	for _, img := range base.Images() {
		refs = append(refs, ParseImageRef(img))
	}
	return State{
		Mode:        ModeUpdate,
		RecipeID:    base.ID,
		Base:        &base,
		Title:       base.Title,
		Highlight:   base.Highlight,
		Tags:        slices.Clone(base.Tag),
		Nutrition:   nutrition,
		Ingredients: NewChipList(base.Ingredients),
		Steps:       NewChipList(base.Instructions),
		Images:      NewImageSet(refs...),
	}
}

// Draft is the plain data view of a State.
type Draft struct {
	Title            string               `json:"title"`
	Highlight        string               `json:"highlight"`
	Tag              []string             `json:"tag"`
	Ingredients      []string             `json:"ingredients"`
	Instructions     []string             `json:"instructions"`
	NutritionInfo    models.NutritionInfo `json:"nutrition_info"`
	PrimaryImage     *ImageRef            `json:"primary_image"`
	SupportingImages []ImageRef           `json:"supporting_images"`
}

// Draft derives the plain view. Ingredients and instructions always come
// from the chip lists, so the two can never diverge.
func (s State) Draft() Draft {
	d := Draft{
		Title:         s.Title,
		Highlight:     s.Highlight,
		Tag:           slices.Clone(s.Tags),
		Ingredients:   s.Ingredients.Labels(),
		Instructions:  s.Steps.Labels(),
		NutritionInfo: maps.Clone(s.Nutrition),
	}
	primary, supporting, ok := SplitImages(s.Images.Refs())
	if ok {
		d.PrimaryImage = &primary
	}
	d.SupportingImages = supporting
	return d
}

// ListName selects one of the two chip lists.
type ListName string

const (
	ListIngredients ListName = "ingredients"
	ListSteps       ListName = "steps"
)

// ChipOp is one chip list gesture.
type ChipOp string

const (
	OpAdd        ChipOp = "add"
	OpBeginEdit  ChipOp = "begin_edit"
	OpSetInput   ChipOp = "set_input"
	OpCommitEdit ChipOp = "commit_edit"
	OpSubmit     ChipOp = "submit"
	OpRemove     ChipOp = "remove"
	OpReorder    ChipOp = "reorder"
	OpMove       ChipOp = "move"
)

// Action is one editor event.
type Action interface {
	apply(State) (State, error)
}

// Reduce applies a single action. On error the input state is returned
// unchanged.
func Reduce(s State, a Action) (State, error) {
	next, err := a.apply(s)
	if err != nil {
		return s, err
	}
	return next, nil
}

// ReduceAll applies actions in order and stops at the first failure,
// returning the original state in that case.
func ReduceAll(s State, actions ...Action) (State, error) {
	cur := s
	for _, a := range actions {
		next, err := a.apply(cur)
		if err != nil {
			return s, err
		}
		cur = next
	}
	return cur, nil
}

type SetTitle struct{ Title string }

func (a SetTitle) apply(s State) (State, error) {
	s.Title = a.Title
	return s, nil
}

type SetHighlight struct{ Highlight string }

func (a SetHighlight) apply(s State) (State, error) {
	s.Highlight = a.Highlight
	return s, nil
}

// SetTags replaces the tag list; blank tags are dropped.
type SetTags struct{ Tags []string }

func (a SetTags) apply(s State) (State, error) {
	var tags []string
	for _, t := range a.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	s.Tags = tags
	return s, nil
}

// SetNutrient sets the amount of one nutrient, adding the row if needed.
type SetNutrient struct{ Name, Amount string }

func (a SetNutrient) apply(s State) (State, error) {
	n := maps.Clone(s.Nutrition)
	if n == nil {
		n = models.NutritionInfo{}
	}
	n[a.Name] = a.Amount
	s.Nutrition = n
	return s, nil
}

// RenameNutrient moves an amount to a new nutrient name. Renaming onto
// another existing nutrient is rejected.
type RenameNutrient struct{ From, To string }

func (a RenameNutrient) apply(s State) (State, error) {
	amount, ok := s.Nutrition[a.From]
	if !ok {
		return s, fmt.Errorf("rename nutrient %q: %w", a.From, domain.ErrNotFound)
	}
	if _, taken := s.Nutrition[a.To]; taken && a.To != a.From {
		return s, &domain.ValidationError{Field: "nutrition_info", Err: fmt.Errorf("nutrient %q already exists", a.To)}
	}
	n := maps.Clone(s.Nutrition)
	delete(n, a.From)
	n[a.To] = amount
	s.Nutrition = n
	return s, nil
}

type RemoveNutrient struct{ Name string }

func (a RemoveNutrient) apply(s State) (State, error) {
	n := maps.Clone(s.Nutrition)
	delete(n, a.Name)
	s.Nutrition = n
	return s, nil
}

// EditChips runs one gesture against the ingredient or step list.
type EditChips struct {
	List  ListName
	Op    ChipOp
	Label string
	Index int
	To    int
	Keys  []string
}

func (a EditChips) apply(s State) (State, error) {
	var list ChipList
	switch a.List {
	case ListIngredients:
		list = s.Ingredients
	case ListSteps:
		list = s.Steps
	default:
		return s, &domain.ValidationError{Field: "list", Err: fmt.Errorf("unknown list %q", a.List)}
	}

	var err error
	switch a.Op {
	case OpAdd:
		list = list.Add(a.Label)
	case OpBeginEdit:
		list, err = list.BeginEdit(a.Index)
	case OpSetInput:
		list = list.SetInput(a.Label)
	case OpCommitEdit:
		list, err = list.CommitEdit(a.Label)
	case OpSubmit:
		list = list.Submit(a.Label)
	case OpRemove:
		list, err = list.Remove(a.Index)
	case OpReorder:
		list, err = list.Reorder(a.Keys)
	case OpMove:
		list, err = list.Move(a.Index, a.To)
	default:
		return s, &domain.ValidationError{Field: "op", Err: fmt.Errorf("unknown %s operation %q", a.List, a.Op)}
	}
	if err != nil {
		return s, fmt.Errorf("%s: %w", a.List, err)
	}

	if a.List == ListIngredients {
		s.Ingredients = list
	} else {
		s.Steps = list
	}
	return s, nil
}

// AppendImages adds picked or captured files to the end of the image set.
type AppendImages struct{ Paths []string }

func (a AppendImages) apply(s State) (State, error) {
	s.Images = s.Images.Append(a.Paths...)
	return s, nil
}

// AttachImages appends references that are already classified, such as
// hosted URLs.
type AttachImages struct{ Refs []ImageRef }

func (a AttachImages) apply(s State) (State, error) {
	s.Images = s.Images.Add(a.Refs...)
	return s, nil
}

type RemoveImage struct{ Index int }

func (a RemoveImage) apply(s State) (State, error) {
	images, err := s.Images.Remove(a.Index)
	if err != nil {
		return s, err
	}
	s.Images = images
	return s, nil
}

// ReorderImages sets the order from a permutation of current positions.
type ReorderImages struct{ Order []int }

func (a ReorderImages) apply(s State) (State, error) {
	images, err := s.Images.Reorder(a.Order)
	if err != nil {
		return s, err
	}
	s.Images = images
	return s, nil
}

type MoveImage struct{ From, To int }

func (a MoveImage) apply(s State) (State, error) {
	images, err := s.Images.Move(a.From, a.To)
	if err != nil {
		return s, err
	}
	s.Images = images
	return s, nil
}

// MergeFields spreads fields extracted from a scanned recipe card over the
// draft. Only fields present in the extraction overwrite the draft; list
// fields replace the whole chip list and drop pending edits.
type MergeFields struct{ Recipe models.Recipe }

func (a MergeFields) apply(s State) (State, error) {
	r := a.Recipe
	if strings.TrimSpace(r.Title) != "" {
		s.Title = r.Title
	}
	if strings.TrimSpace(r.Highlight) != "" {
		s.Highlight = r.Highlight
	}
	if len(r.Tag) > 0 {
		s.Tags = slices.Clone(r.Tag)
	}
	if len(r.Ingredients) > 0 {
		s.Ingredients = NewChipList(r.Ingredients)
	}
	if len(r.Instructions) > 0 {
		s.Steps = NewChipList(r.Instructions)
	}
	if len(r.NutritionInfo) > 0 {
		s.Nutrition = maps.Clone(r.NutritionInfo)
	}
	var remote []ImageRef
	for _, img := range r.Images() {
		if LooksRemote(img) {
			remote = append(remote, RemoteImage(img))
		}
	}
	if len(remote) > 0 && s.Images.Len() == 0 {
		s.Images = NewImageSet(remote...)
	}
	return s, nil
}
