package chips

import (
	"image"
	"strings"

	"github.com/pkg/errors"
)

// EdgePolicy decides what happens to the right/bottom remainder of a raster
// that is narrower or shorter than one chip.
type EdgePolicy int

const (
	// EdgePad emits a chip for the remainder, filling the missing pixels with
	// the tiler's fill values. A WxH raster yields ceil(H/s) x ceil(W/s) chips.
	EdgePad EdgePolicy = iota

	// EdgeDrop discards the remainder. A WxH raster yields floor(H/s) x floor(W/s) chips.
	EdgeDrop
)

func (p EdgePolicy) String() string {
	switch p {
	case EdgePad:
		return "pad"
	case EdgeDrop:
		return "drop"
	}
	return "unknown"
}

// ParseEdgePolicy parses "pad" or "drop" (case-insensitive).
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pad", "":
		return EdgePad, nil
	case "drop":
		return EdgeDrop, nil
	}
	return EdgePad, errors.Errorf("unknown edge policy %q, valid values are \"pad\" and \"drop\"", s)
}

// ChipGrid returns how many chip rows and columns cover a width x height
// raster with chips of size x size pixels.
func ChipGrid(width, height, size int, policy EdgePolicy) (rows, cols int) {
	if size <= 0 || width <= 0 || height <= 0 {
		return 0, 0
	}
	if policy == EdgeDrop {
		return height / size, width / size
	}
	return (height + size - 1) / size, (width + size - 1) / size
}

// ChipRect is the region, in raster coordinates relative to bounds.Min, of
// the chip at (row, col). It may extend past bounds for padded edge chips.
func ChipRect(bounds image.Rectangle, size, row, col int) image.Rectangle {
	x0 := bounds.Min.X + col*size
	y0 := bounds.Min.Y + row*size
	return image.Rect(x0, y0, x0+size, y0+size)
}
