package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded rejects an add that would push a product past
	// MaxImagesPerProduct. The staging set is left untouched.
	ErrCapacityExceeded = errors.New("image limit reached")

	// ErrDeletionFailed means the backend did not confirm an image delete;
	// the persisted list keeps the image.
	ErrDeletionFailed = errors.New("image deletion failed")
)

// SigningError is a failed or malformed upload-credential request.
type SigningError struct {
	Status int
	Cause  error
}

func (e *SigningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cloudinary signature request failed: %v", e.Cause)
	}
	return fmt.Sprintf("cloudinary signature request failed: status %d", e.Status)
}

func (e *SigningError) Unwrap() error { return e.Cause }

// UploadError is a per-file asset store failure. It names the file so a
// batch caller can report which upload failed without aborting siblings.
type UploadError struct {
	FileName string
	Cause    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.FileName, e.Cause)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// MutationError is a backend mutation the server rejected or that failed
// in transport. Message is the backend's human-readable reason when the
// response carried one.
type MutationError struct {
	Op      string
	Status  int
	Message string
}

func (e *MutationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}
