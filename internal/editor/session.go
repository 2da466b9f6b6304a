// Package editor owns draft sessions: a draft plus the bookkeeping that
// keeps edits and saves from stepping on each other.
package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/reconcile"
)

// Saver persists a draft snapshot.
type Saver interface {
	Save(ctx context.Context, st draft.State) (reconcile.Result, error)
}

// Session serializes every operation on one draft. Edits are rejected while
// a save is in flight so nothing typed during the save is lost when the
// draft resets afterwards.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	state     draft.State
	updatedAt time.Time
	saving    bool
	discarded bool
	cancel    context.CancelFunc
	lastSaved *reconcile.Result
}

func NewSession(st draft.State) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		state:     st,
		updatedAt: now,
	}
}

func (s *Session) State() draft.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply reduces all actions atomically. On error the draft is unchanged.
func (s *Session) Apply(actions ...draft.Action) (draft.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return s.state, err
	}
	next, err := draft.ReduceAll(s.state, actions...)
	if err != nil {
		return s.state, err
	}
	s.state = next
	s.updatedAt = time.Now()
	return next, nil
}

// Save persists a snapshot of the draft. On success the draft resets: a
// create starts over empty, an update reloads from the merged recipe. On
// failure the draft is kept as it was. A save that finishes after Discard
// is dropped and reported as ErrDraftDiscarded.
func (s *Session) Save(ctx context.Context, saver Saver) (reconcile.Result, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return reconcile.Result{}, err
	}
	snapshot := s.state
	ctx, cancel := context.WithCancel(ctx)
	s.saving = true
	s.cancel = cancel
	s.mu.Unlock()

	res, err := saver.Save(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	s.saving = false
	s.cancel = nil

	if s.discarded {
		slog.Info("Dropping save result for discarded draft", "session", s.ID, "saved", err == nil)
		return reconcile.Result{}, domain.ErrDraftDiscarded
	}
	if err != nil {
		return reconcile.Result{}, err
	}

	s.lastSaved = &res
	s.updatedAt = time.Now()
	if res.Mode == draft.ModeUpdate {
		s.state = draft.FromRecipe(res.Recipe)
	} else {
		s.state = draft.New()
	}
	return res, nil
}

// Discard closes the session and cancels a save in flight.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.discarded = true
	if s.cancel != nil {
		s.cancel()
	}
	slog.Debug("Draft discarded", "session", s.ID)
}

// Writable reports whether Apply would currently accept edits.
func (s *Session) Writable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writable()
}

func (s *Session) writable() error {
	switch {
	case s.discarded:
		return domain.ErrDraftDiscarded
	case s.saving:
		return domain.ErrSaveInProgress
	}
	return nil
}

// View is the JSON shape of a session returned by the editor service.
type View struct {
	ID            string               `json:"id"`
	Mode          string               `json:"mode"`
	RecipeID      models.ID            `json:"recipe_id,omitempty"`
	Title         string               `json:"title"`
	Highlight     string               `json:"highlight"`
	Tag           []string             `json:"tag"`
	NutritionInfo models.NutritionInfo `json:"nutrition_info"`
	Ingredients   ChipsView            `json:"ingredients"`
	Steps         ChipsView            `json:"steps"`
	Images        []draft.ImageRef     `json:"images"`
	DefaultImage  *draft.ImageRef      `json:"default_image,omitempty"`
	Saving        bool                 `json:"saving"`
	LastSavedID   models.ID            `json:"last_saved_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type ChipsView struct {
	Items   []draft.Chip `json:"items"`
	Editing *int         `json:"editing,omitempty"`
	Input   string       `json:"input,omitempty"`
}

func chipsView(c draft.ChipList) ChipsView {
	v := ChipsView{Items: c.Items(), Input: c.Input()}
	if v.Items == nil {
		v.Items = []draft.Chip{}
	}
	if i, ok := c.Editing(); ok {
		v.Editing = &i
	}
	return v
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	v := View{
		ID:            s.ID,
		Mode:          st.Mode.String(),
		RecipeID:      st.RecipeID,
		Title:         st.Title,
		Highlight:     st.Highlight,
		Tag:           st.Tags,
		NutritionInfo: st.Nutrition,
		Ingredients:   chipsView(st.Ingredients),
		Steps:         chipsView(st.Steps),
		Images:        st.Images.Refs(),
		Saving:        s.saving,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.updatedAt,
	}
	if v.Tag == nil {
		v.Tag = []string{}
	}
	if v.Images == nil {
		v.Images = []draft.ImageRef{}
	}
	if ref, ok := st.Images.Default(); ok {
		v.DefaultImage = &ref
	}
	if s.lastSaved != nil {
		v.LastSavedID = s.lastSaved.ID
	}
	return v
}
