package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned when bytes cannot be decoded as an image
	ErrDecode = errors.New("image decode failed")
	// ErrGeometryNotFound is returned when no transparent screen region exists at the frame center
	ErrGeometryNotFound = errors.New("screen geometry not found")
	// ErrInvalidGeometry is returned for degenerate or out-of-bounds screen rectangles
	ErrInvalidGeometry = errors.New("invalid screen geometry")
	// ErrAssetUnavailable is returned when a source or frame asset cannot be retrieved
	ErrAssetUnavailable = errors.New("asset unavailable")
)

// FrameError reports a failure to frame one source with one frame.
type FrameError struct {
	Op     string
	Source string
	Frame  string
	Err    error
}

func (e *FrameError) Error() string {
	switch {
	case e.Source != "" && e.Frame != "":
		return fmt.Sprintf("%s %q with frame %q: %v", e.Op, e.Source, e.Frame, e.Err)
	case e.Frame != "":
		return fmt.Sprintf("%s frame %q: %v", e.Op, e.Frame, e.Err)
	default:
		return fmt.Sprintf("%s %q: %v", e.Op, e.Source, e.Err)
	}
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
