package types

import "strings"

// Rect is the screen cutout of a frame image, in the frame's own pixel space.
// Right and Bottom are exclusive.
type Rect struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect builds a Rect from its edges, filling in Width and Height.
func NewRect(left, top, right, bottom int) Rect {
	return Rect{
		Top:    top,
		Left:   left,
		Bottom: bottom,
		Right:  right,
		Width:  right - left,
		Height: bottom - top,
	}
}

// Max returns the longer side of the rectangle
func (r Rect) Max() int {
	if r.Height > r.Width {
		return r.Height
	}
	return r.Width
}

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// FrameRecord describes one device frame asset. Field order matches the
// frames.json bundle format.
type FrameRecord struct {
	RelPath    string   `json:"relPath"`
	Category   string   `json:"category"`
	Device     string   `json:"device"`
	Frame      Rect     `json:"frame"`
	Name       string   `json:"name"`
	PixelRatio *float64 `json:"pixelRatio"`
	Shadow     bool     `json:"shadow"`
	Tags       []string `json:"tags"`
}

// DisplayName is the name shown to users, with a shadow marker for
// drop-shadow variants.
func (f FrameRecord) DisplayName() string {
	if f.Shadow {
		return f.Name + " [shadow]"
	}
	return f.Name
}

// EffectivePixelRatio returns the device pixel ratio, or 1 when unknown.
func (f FrameRecord) EffectivePixelRatio() float64 {
	if f.PixelRatio == nil || *f.PixelRatio <= 0 {
		return 1
	}
	return *f.PixelRatio
}

// Matches reports whether every whitespace-separated term of query occurs
// in the record's name, device, category or tags (case-insensitive).
func (f FrameRecord) Matches(query string) bool {
	haystack := strings.ToLower(strings.Join([]string{f.Name, f.Device, f.Category, strings.Join(f.Tags, " ")}, " "))
	if f.Shadow {
		haystack += " shadow"
	}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// TagsFromName derives search tags from a frame name
func TagsFromName(name string) []string {
	fields := strings.Fields(name)
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		tags = append(tags, strings.ToLower(f))
	}
	return tags
}

// PixelRatio is one row of the device pixel ratio table
type PixelRatio struct {
	Name       string  `json:"name"`
	PixelRatio float64 `json:"pixelRatio"`
}

// Failure records a frame asset that could not be processed
type Failure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f Failure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}
