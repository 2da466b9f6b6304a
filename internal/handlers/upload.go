package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/larder-app/larder/internal/draft"
)

// HandleUpload appends images to a draft, either multipart files ("files"
// or "file") or a JSON body with image_url. Files become local references
// uploaded on save; an image_url is already hosted and is kept remote.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := session.Writable(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Check if this is a JSON request with image URL
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.handleURLUpload(w, r, session.Apply)
		return
	}

	if err := r.ParseMultipartForm(4 * maxUploadSize); err != nil {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(w, "Failed to read file: no files or file field", http.StatusBadRequest)
		return
	}

	paths := make([]string, 0, len(headers))
	images := make([]*savedImage, 0, len(headers))
	for _, header := range headers {
		saved, err := h.saveFormFile(header)
		if err != nil {
			h.discardStaged(images...)
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		paths = append(paths, saved.Path)
		images = append(images, saved)
	}

	if _, err := session.Apply(draft.AppendImages{Paths: paths}); err != nil {
		h.discardStaged(images...)
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, map[string]any{
		"message": "Successfully uploaded " + strconv.Itoa(len(images)) + " image(s)",
		"images":  images,
		"draft":   session.View(),
	})
}

func (h *Handler) saveFormFile(header *multipart.FileHeader) (*savedImage, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return h.readAndSave(file, header.Filename)
}

func (h *Handler) readAndSave(r io.Reader, filename string) (*savedImage, error) {
	fileData, err := io.ReadAll(io.LimitReader(r, maxUploadSize))
	if err != nil {
		return nil, err
	}
	if len(fileData) >= maxUploadSize {
		return nil, errTooLarge
	}
	return h.processImageFile(fileData, filename)
}

type applyFunc func(actions ...draft.Action) (draft.State, error)

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request, apply applyFunc) {
	var request struct {
		ImageURL string `json:"image_url"`
		// Download stores a local copy that is uploaded again on save.
		Download bool `json:"download"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !draft.LooksRemote(request.ImageURL) {
		h.writeError(w, "image_url must be an http(s) URL", http.StatusBadRequest)
		return
	}

	var (
		action draft.Action = draft.AttachImages{Refs: []draft.ImageRef{draft.RemoteImage(request.ImageURL)}}
		staged *savedImage
	)
	if request.Download {
		data, err := h.downloadImageFromURL(r.Context(), request.ImageURL)
		if err != nil {
			h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
			return
		}
		saved, err := h.processImageFile(data, path.Base(strings.SplitN(request.ImageURL, "?", 2)[0]))
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		action = draft.AppendImages{Paths: []string{saved.Path}}
		staged = saved
	}

	st, err := apply(action)
	if err != nil {
		h.discardStaged(staged)
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"message": "Successfully added image from URL",
		"images":  st.Images.Len(),
		"source":  "url",
	})
}

func (h *Handler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, "Invalid image index", http.StatusBadRequest)
		return
	}
	if _, err := session.Apply(draft.RemoveImage{Index: index}); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, session.View())
}

// HandleReorderImages applies a full permutation ({"order": [...]}) or a
// single move ({"from": i, "to": j}).
func (h *Handler) HandleReorderImages(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request struct {
		Order []int `json:"order"`
		From  *int  `json:"from"`
		To    *int  `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var action draft.Action = draft.ReorderImages{Order: request.Order}
	if request.From != nil && request.To != nil {
		action = draft.MoveImage{From: *request.From, To: *request.To}
	}
	if _, err := session.Apply(action); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, session.View())
}
