package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ReadyState mirrors the media element readiness levels.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// Surface is a currently rendering video.
type Surface interface {
	ReadyState() ReadyState
	// Dimensions reports the native pixel size.
	Dimensions() (width, height int)
	Fullscreen() bool
	// Draw renders the current frame scaled to width×height.
	Draw(ctx context.Context, width, height int) (image.Image, error)
}

// ErrorKind classifies surface failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindSecurity is a compositor or cross-origin restriction.
	KindSecurity
	// KindInvalidState is a surface that cannot be drawn right now.
	KindInvalidState
)

func (k ErrorKind) String() string {
	switch k {
	case KindSecurity:
		return "security"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

var (
	// ErrSecurity can be returned by surfaces for compositor restrictions.
	ErrSecurity = errors.New("surface security restriction")
	// ErrInvalidState can be returned by surfaces that cannot draw yet.
	ErrInvalidState = errors.New("surface in invalid state")
)

// CaptureError wraps a surface failure with its kind.
type CaptureError struct {
	Kind       ErrorKind
	Fullscreen bool
	Err        error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture frame (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Transient reports whether the failure is a fullscreen compositing quirk
// that should be retried on the next tick without disturbing verification.
func (e *CaptureError) Transient() bool {
	return e.Fullscreen && (e.Kind == KindSecurity || e.Kind == KindInvalidState)
}

// ClassifyError maps err onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	var ce *CaptureError
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &ce):
		return ce.Kind
	case errors.Is(err, ErrSecurity):
		return KindSecurity
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	default:
		return KindUnknown
	}
}
