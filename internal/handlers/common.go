package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/reconcile"
	"github.com/larder-app/larder/internal/scan"
	"github.com/larder-app/larder/internal/storage"
)

// maxUploadSize limits each uploaded image to 10MB
const maxUploadSize = 10 * 1024 * 1024

// RecipeFinder loads a persisted recipe to seed an edit draft.
type RecipeFinder interface {
	FindRecipe(ctx context.Context, userID string, id models.ID) (*models.Recipe, error)
}

type Handler struct {
	sessionStore *storage.SessionStore
	saver        editor.Saver
	analyzer     scan.Analyzer
	recipes      RecipeFinder
	identity     reconcile.Identity
	uploadsDir   string
}

type Options struct {
	Sessions   *storage.SessionStore
	Saver      editor.Saver
	Analyzer   scan.Analyzer
	Recipes    RecipeFinder
	Identity   reconcile.Identity
	UploadsDir string
}

func New(opts Options) *Handler {
	if opts.Sessions == nil {
		opts.Sessions = storage.New(storage.DefaultSessionTTL)
	}
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	return &Handler{
		sessionStore: opts.Sessions,
		saver:        opts.Saver,
		analyzer:     opts.Analyzer,
		recipes:      opts.Recipes,
		identity:     opts.Identity,
		uploadsDir:   opts.UploadsDir,
	}
}

// Routes wires every editor endpoint onto a new mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/drafts", h.HandleListDrafts)
	mux.HandleFunc("POST /api/drafts", h.HandleCreateDraft)
	mux.HandleFunc("GET /api/drafts/{id}", h.HandleGetDraft)
	mux.HandleFunc("PATCH /api/drafts/{id}", h.HandleUpdateDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", h.HandleDiscardDraft)
	mux.HandleFunc("POST /api/drafts/{id}/{list}", h.HandleChips)
	mux.HandleFunc("POST /api/drafts/{id}/images", h.HandleUpload)
	mux.HandleFunc("DELETE /api/drafts/{id}/images/{index}", h.HandleRemoveImage)
	mux.HandleFunc("PUT /api/drafts/{id}/images/order", h.HandleReorderImages)
	mux.HandleFunc("POST /api/drafts/{id}/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/drafts/{id}/save", h.HandleSave)
	mux.HandleFunc("GET /static/uploads/", h.HandleStatic)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeDomainError reports err as JSON with the status its kind maps to.
// The message is the one line a user should see; detail is for debugging.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		slog.Error("Request failed", "err", err)
	} else {
		slog.Debug("Request rejected", "err", err, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{
		"error":  domain.UserMessage(err),
		"detail": err.Error(),
	})
}

func statusFor(err error) int {
	var (
		validation *domain.ValidationError
		upload     *domain.UploadError
		network    *domain.NetworkError
		server     *domain.ServerError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDraftDiscarded):
		return http.StatusGone
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.As(err, &upload), errors.As(err, &network), errors.As(err, &server):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrInvalidPermutation),
		errors.Is(err, domain.ErrNoEditInProgress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	session, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Draft not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// File operation helpers
func (h *Handler) ensureUploadsDir() error {
	return os.MkdirAll(h.draftImagesDir(), 0755)
}
