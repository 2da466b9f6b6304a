// Package domain holds the error taxonomy shared by every layer of larder.
// Callers match with errors.Is against the sentinels and errors.As against
// the typed errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used across layers.
var (
	ErrUnauthenticated    = errors.New("not signed in")
	ErrEmptyTitle         = errors.New("title is required")
	ErrEmptyPrompt        = errors.New("prompt is empty")
	ErrNotFound           = errors.New("not found")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrInvalidPermutation = errors.New("reorder is not a permutation of the current items")
	ErrNoEditInProgress   = errors.New("no item is being edited")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDraftDiscarded     = errors.New("draft was discarded")
	ErrSaveInProgress     = errors.New("a save is already in progress")
)

// ValidationError is returned before any I/O when a request cannot proceed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Err.Error()
	}
	return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ImageFailure records why a single image could not be uploaded.
type ImageFailure struct {
	Index  int
	Source string
	Err    error
}

// UploadError aggregates every image that failed during one resolve pass.
// No partial result accompanies it.
type UploadError struct {
	Total    int
	Failures []ImageFailure
}

func (e *UploadError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("image %d (%s): %v", f.Index, f.Source, f.Err))
	}
	return fmt.Sprintf("failed to upload %d of %d images: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *UploadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means the backend answered but refused the request, either
// with a non-success status or with {"success": false}.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.StatusCode, e.Message)
}

// UserMessage turns any error from the draft, upload or save path into the
// single line shown to the user.
func UserMessage(err error) string {
	var (
		validation *ValidationError
		upload     *UploadError
		network    *NetworkError
		server     *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in first."
	case errors.As(err, &validation):
		return "Please fix the recipe: " + validation.Err.Error() + "."
	case errors.Is(err, ErrPermissionDenied):
		return "Permission denied while reading the image. Your draft was kept."
	case errors.As(err, &upload):
		return fmt.Sprintf("Failed to upload %d of %d images. Your draft was kept, please try again.", len(upload.Failures), upload.Total)
	case errors.As(err, &network):
		return "Could not reach the recipe service. Your draft was kept, please try again."
	case errors.As(err, &server):
		return "The recipe service rejected the request. Your draft was kept, please try again."
	default:
		return err.Error()
	}
}
