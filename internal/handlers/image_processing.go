package handlers

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type savedImage struct {
	Filename string `json:"filename"`
	Path     string `json:"-"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	data    []byte
	// created is set when this call wrote the file rather than finding it
	// already staged by an earlier pick.
	created bool
}

func (h *Handler) draftImagesDir() string {
	return filepath.Join(h.uploadsDir, "drafts")
}

// processImageFile stores picked image bytes under a content-addressed name
// so the same photo picked twice is written once. The draft still gets
// one reference per pick.
func (h *Handler) processImageFile(fileData []byte, filename string) (*savedImage, error) {
	mt := mimetype.Detect(fileData)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%s is not an image (detected %s)", filename, mt.String())
	}
	if err := h.ensureUploadsDir(); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	sum := md5.Sum(fileData)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = mt.Extension()
	}
	imageFilename := hex.EncodeToString(sum[:]) + ext
	imageFilePath, err := filepath.Abs(filepath.Join(h.draftImagesDir(), imageFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}

	_, statErr := os.Stat(imageFilePath)
	created := os.IsNotExist(statErr)
	if err := os.WriteFile(imageFilePath, fileData, 0644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	slog.Info("Image saved", "filename", imageFilename, "original", filename)

	width, height, err := getImageDimensions(fileData)
	if err != nil {
		slog.Warn("Failed to get image dimensions", "error", err)
		width, height = 0, 0
	}

	return &savedImage{
		Filename: imageFilename,
		Path:     imageFilePath,
		URL:      "/static/uploads/drafts/" + imageFilename,
		Width:    width,
		Height:   height,
		data:     fileData,
		created:  created,
	}, nil
}

// discardStaged removes files written for an edit the draft then refused.
// Files another pick already referenced are left alone.
func (h *Handler) discardStaged(images ...*savedImage) {
	for _, img := range images {
		if img == nil || !img.created {
			continue
		}
		if err := os.Remove(img.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove staged image", "path", img.Path, "err", err)
		}
	}
}

func (h *Handler) downloadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

func getImageDimensions(data []byte) (int, int, error) {
	img, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return img.Width, img.Height, nil
}
