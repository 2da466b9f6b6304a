package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/larder-app/larder/internal/draft"
)

var errTooLarge = errors.New("file too large (max 10MB)")

// HandleAnalyze reads a recipe card photo and spreads the extracted fields
// over the draft. The photo is also added to the draft's images unless
// attach=false.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if h.analyzer == nil {
		h.writeError(w, "Image analysis is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := session.Writable(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	saved, err := h.readAndSave(file, header.Filename)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	extracted, err := h.analyzer.Analyze(r.Context(), header.Filename, saved.data)
	if err != nil {
		h.discardStaged(saved)
		h.writeDomainError(w, err)
		return
	}

	attach := r.FormValue("attach") != "false"
	actions := []draft.Action{draft.MergeFields{Recipe: *extracted}}
	if attach {
		actions = append(actions, draft.AppendImages{Paths: []string{saved.Path}})
	}
	if _, err := session.Apply(actions...); err != nil {
		h.discardStaged(saved)
		h.writeDomainError(w, err)
		return
	}
	if !attach {
		h.discardStaged(saved)
	}

	slog.Info("Draft filled from image", "session_id", session.ID, "title", extracted.Title)
	h.writeJSON(w, map[string]any{
		"extracted": extracted,
		"draft":     session.View(),
	})
}
