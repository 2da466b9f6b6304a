package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/models"
)

func (h *Handler) HandleListDrafts(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	views := make([]editor.View, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, session.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	h.writeJSON(w, views)
}

// HandleCreateDraft opens a draft. With a recipe_id the draft edits that
// recipe, otherwise it starts empty.
func (h *Handler) HandleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RecipeID models.ID `json:"recipe_id"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	st := draft.New()
	if request.RecipeID != "" {
		user, err := h.identity.CurrentUser(r.Context())
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		recipe, err := h.recipes.FindRecipe(r.Context(), user.ID, request.RecipeID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		st = draft.FromRecipe(*recipe)
	}

	session := editor.NewSession(st)
	h.sessionStore.Set(session.ID, session)
	slog.Info("Draft opened", "session_id", session.ID, "mode", st.Mode, "recipe_id", st.RecipeID)
	h.writeJSONStatus(w, http.StatusCreated, session.View())
}

func (h *Handler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, session.View())
}

func (h *Handler) HandleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.sessionStore.Delete(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

// fieldsRequest patches scalar draft fields. Absent fields are untouched.
type fieldsRequest struct {
	Title           *string           `json:"title"`
	Highlight       *string           `json:"highlight"`
	Tag             *models.Tags      `json:"tag"`
	NutritionInfo   map[string]string `json:"nutrition_info"`
	RenameNutrients []nutrientRename  `json:"rename_nutrients"`
	RemoveNutrients []string          `json:"remove_nutrients"`
}

// nutrientRename is one rename, applied in request order.
type nutrientRename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (req fieldsRequest) actions() []draft.Action {
	var actions []draft.Action
	if req.Title != nil {
		actions = append(actions, draft.SetTitle{Title: *req.Title})
	}
	if req.Highlight != nil {
		actions = append(actions, draft.SetHighlight{Highlight: *req.Highlight})
	}
	if req.Tag != nil {
		actions = append(actions, draft.SetTags{Tags: *req.Tag})
	}
	for _, rn := range req.RenameNutrients {
		actions = append(actions, draft.RenameNutrient{From: rn.From, To: rn.To})
	}
	for name, amount := range req.NutritionInfo {
		actions = append(actions, draft.SetNutrient{Name: name, Amount: amount})
	}
	for _, name := range req.RemoveNutrients {
		actions = append(actions, draft.RemoveNutrient{Name: name})
	}
	return actions
}

func (h *Handler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := session.Apply(request.actions()...); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, session.View())
}

type chipRequest struct {
	Op    draft.ChipOp `json:"op"`
	Label string       `json:"label"`
	Index int          `json:"index"`
	To    int          `json:"to"`
	Keys  []string     `json:"keys"`
}

// HandleChips runs one chip list operation on the ingredients or steps.
func (h *Handler) HandleChips(w http.ResponseWriter, r *http.Request) {
	list := draft.ListName(r.PathValue("list"))
	if list != draft.ListIngredients && list != draft.ListSteps {
		h.writeError(w, "Unknown list. Must be 'ingredients' or 'steps'", http.StatusNotFound)
		return
	}
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request chipRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	_, err := session.Apply(draft.EditChips{
		List:  list,
		Op:    request.Op,
		Label: request.Label,
		Index: request.Index,
		To:    request.To,
		Keys:  request.Keys,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, session.View())
}

// HandleSave persists the draft. On failure the draft is left as it was.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	res, err := session.Save(r.Context(), h.saver)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"id":     res.ID,
		"mode":   res.Mode.String(),
		"recipe": res.Recipe,
		"draft":  session.View(),
	})
}
