package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewRect(t *testing.T) {
	r := NewRect(119, 299, 870, 1634)
	if r.Width != 751 || r.Height != 1335 {
		t.Errorf("Expected 751x1335, got %dx%d", r.Width, r.Height)
	}
	if r.Max() != 1335 {
		t.Errorf("Expected max 1335, got %d", r.Max())
	}
	if r.Empty() {
		t.Error("rect should not be empty")
	}
	if !NewRect(5, 5, 5, 10).Empty() {
		t.Error("zero-width rect should be empty")
	}
}

func TestDisplayName(t *testing.T) {
	rec := FrameRecord{Name: "Apple iPhone 6s Gold"}
	if rec.DisplayName() != "Apple iPhone 6s Gold" {
		t.Errorf("Unexpected display name %q", rec.DisplayName())
	}

	rec.Shadow = true
	if rec.DisplayName() != "Apple iPhone 6s Gold [shadow]" {
		t.Errorf("Unexpected display name %q", rec.DisplayName())
	}
	if rec.Name != "Apple iPhone 6s Gold" {
		t.Error("DisplayName must not change Name")
	}
}

func TestEffectivePixelRatio(t *testing.T) {
	rec := FrameRecord{}
	if rec.EffectivePixelRatio() != 1 {
		t.Errorf("Expected 1 for unknown ratio, got %v", rec.EffectivePixelRatio())
	}

	three := 3.0
	rec.PixelRatio = &three
	if rec.EffectivePixelRatio() != 3 {
		t.Errorf("Expected 3, got %v", rec.EffectivePixelRatio())
	}

	zero := 0.0
	rec.PixelRatio = &zero
	if rec.EffectivePixelRatio() != 1 {
		t.Errorf("Expected 1 for zero ratio, got %v", rec.EffectivePixelRatio())
	}
}

func TestMatches(t *testing.T) {
	rec := FrameRecord{
		Category: "Phones",
		Device:   "Apple iPhone 6s",
		Name:     "Apple iPhone 6s Gold",
		Shadow:   true,
		Tags:     []string{"apple", "iphone", "6s", "gold"},
	}

	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"iphone", true},
		{"IPHONE gold", true},
		{"phones 6s", true},
		{"shadow", true},
		{"iphone silver", false},
		{"pixel", false},
	}

	for _, tt := range tests {
		if got := rec.Matches(tt.query); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestTagsFromName(t *testing.T) {
	got := TagsFromName("  Samsung Galaxy  S8 Midnight Black ")
	if strings.Join(got, ",") != "samsung,galaxy,s8,midnight,black" {
		t.Errorf("Unexpected tags %v", got)
	}
	if tags := TagsFromName(""); len(tags) != 0 {
		t.Errorf("Expected no tags, got %v", tags)
	}
}

func TestFrameError(t *testing.T) {
	cause := fmt.Errorf("frame missing: %w", ErrAssetUnavailable)
	err := error(&FrameError{Op: "load frame", Source: "shot.png", Frame: "Phones/a.png", Err: cause})

	if !errors.Is(err, ErrAssetUnavailable) {
		t.Error("FrameError should unwrap to its cause")
	}
	var fe *FrameError
	if !errors.As(fmt.Errorf("batch: %w", err), &fe) || fe.Op != "load frame" {
		t.Error("FrameError should be reachable with errors.As")
	}
	if !strings.Contains(err.Error(), `"shot.png"`) || !strings.Contains(err.Error(), `"Phones/a.png"`) {
		t.Errorf("Unexpected message %q", err.Error())
	}

	frameOnly := &FrameError{Op: "extract", Frame: "Phones/a.png", Err: ErrGeometryNotFound}
	if frameOnly.Error() != `extract frame "Phones/a.png": screen geometry not found` {
		t.Errorf("Unexpected message %q", frameOnly.Error())
	}
}

func TestFailure(t *testing.T) {
	f := Failure{Path: "Phones/a.png", Err: ErrDecode}
	if !errors.Is(f, ErrDecode) {
		t.Error("Failure should unwrap to its cause")
	}
	if f.Error() != "Phones/a.png: image decode failed" {
		t.Errorf("Unexpected message %q", f.Error())
	}
}
