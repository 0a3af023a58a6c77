// Package geometry locates the transparent screen cutout of a device frame.
package geometry

import (
	"fmt"
	"image"

	"github.com/menta2k/deviceframe/pkg/types"
)

// alphaGrid gives random access to the 8-bit alpha channel of an image,
// with coordinates relative to the image origin.
type alphaGrid struct {
	img    image.Image
	width  int
	height int
}

func newAlphaGrid(img image.Image) alphaGrid {
	b := img.Bounds()
	return alphaGrid{img: img, width: b.Dx(), height: b.Dy()}
}

func (g alphaGrid) alpha(x, y int) uint8 {
	switch m := g.img.(type) {
	case *image.NRGBA:
		return m.Pix[m.PixOffset(m.Rect.Min.X+x, m.Rect.Min.Y+y)+3]
	case *image.RGBA:
		return m.Pix[m.PixOffset(m.Rect.Min.X+x, m.Rect.Min.Y+y)+3]
	}
	origin := g.img.Bounds().Min
	_, _, _, a := g.img.At(origin.X+x, origin.Y+y).RGBA()
	return uint8(a >> 8)
}

// open reports whether a pixel belongs to the screen region
func (g alphaGrid) open(x, y int) bool {
	return g.alpha(x, y) != 0xff
}

// Extract finds the bounding box of the transparent region containing the
// center pixel of img. The region is the 4-connected set of pixels whose
// alpha is not fully opaque. A region that reaches an image edge is
// bounded by that edge.
//
// Returns types.ErrGeometryNotFound when the center pixel is opaque.
func Extract(img image.Image) (types.Rect, error) {
	g := newAlphaGrid(img)
	if g.width == 0 || g.height == 0 {
		return types.Rect{}, fmt.Errorf("empty image: %w", types.ErrGeometryNotFound)
	}

	cx, cy := g.width/2, g.height/2
	if !g.open(cx, cy) {
		return types.Rect{}, fmt.Errorf("center pixel (%d,%d) is opaque: %w", cx, cy, types.ErrGeometryNotFound)
	}

	visited := make([]bool, g.width*g.height)
	queue := make([]int, 0, 1024)

	start := cy*g.width + cx
	visited[start] = true
	queue = append(queue, start)

	left, top, right, bottom := cx, cy, cx+1, cy+1

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		px, py := p%g.width, p/g.width

		for _, d := range neighbours {
			x, y := px+d[0], py+d[1]
			if x < 0 || y < 0 || x >= g.width || y >= g.height {
				continue
			}
			idx := y*g.width + x
			if visited[idx] {
				continue
			}
			visited[idx] = true
			if !g.open(x, y) {
				continue
			}
			queue = append(queue, idx)

			if x < left {
				left = x
			}
			if y < top {
				top = y
			}
			if x+1 > right {
				right = x + 1
			}
			if y+1 > bottom {
				bottom = y + 1
			}
		}

		// drop processed prefix once it dominates the backing array
		if head > 1<<16 && head > len(queue)/2 {
			queue = append(queue[:0], queue[head+1:]...)
			head = -1
		}
	}

	return types.NewRect(left, top, right, bottom), nil
}

var neighbours = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// ScanEdges walks outward from the center pixel along the four axes and
// stops at the first opaque pixel in each direction.
//
// Deprecated: ScanEdges misses any part of the cutout that is not visible
// along the center row and column, so notched or rounded screens come out
// too small. Use Extract.
func ScanEdges(img image.Image) (types.Rect, error) {
	g := newAlphaGrid(img)
	if g.width == 0 || g.height == 0 {
		return types.Rect{}, fmt.Errorf("empty image: %w", types.ErrGeometryNotFound)
	}

	cx, cy := g.width/2, g.height/2
	if !g.open(cx, cy) {
		return types.Rect{}, fmt.Errorf("center pixel (%d,%d) is opaque: %w", cx, cy, types.ErrGeometryNotFound)
	}

	left := cx
	for left > 0 && g.open(left-1, cy) {
		left--
	}
	right := cx + 1
	for right < g.width && g.open(right, cy) {
		right++
	}
	top := cy
	for top > 0 && g.open(cx, top-1) {
		top--
	}
	bottom := cy + 1
	for bottom < g.height && g.open(cx, bottom) {
		bottom++
	}

	return types.NewRect(left, top, right, bottom), nil
}
