package chips

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Palette maps the colors of an RGB label raster to class ids. A nil *Palette
// means the label raster already stores class ids as pixel values.
type Palette struct {
	Classes map[color.RGBA]uint8

	// Ignore marks pixels that carry no class. Chips touching it can be skipped
	// with Tiler.SkipIgnored. Nil if the palette has no ignore color.
	Ignore *color.RGBA
}

// DroneDeployPalette is the color scheme of the Drone Deploy label rasters.
var DroneDeployPalette = &Palette{
	Classes: map[color.RGBA]uint8{
		{R: 230, G: 25, B: 75, A: 255}:   0, // building
		{R: 145, G: 30, B: 180, A: 255}:  1, // clutter
		{R: 60, G: 180, B: 75, A: 255}:   2, // vegetation
		{R: 245, G: 130, B: 48, A: 255}:  3, // water
		{R: 255, G: 255, B: 255, A: 255}: 4, // ground
		{R: 0, G: 130, B: 200, A: 255}:   5, // car
	},
	Ignore: &color.RGBA{R: 255, G: 0, B: 255, A: 255},
}

// labelPlane holds the class id of every pixel of a label raster, row-major,
// plus which pixels carry the palette's ignore color.
type labelPlane struct {
	bounds  image.Rectangle
	ids     []uint8
	ignored []bool
}

func (p *labelPlane) at(x, y int) (id uint8, ignored bool) {
	i := (y-p.bounds.Min.Y)*p.bounds.Dx() + (x - p.bounds.Min.X)
	if p.ignored != nil {
		ignored = p.ignored[i]
	}
	return p.ids[i], ignored
}

// classPlane converts a decoded label raster into class ids, see ClassIDs for
// rasters without a palette.
func classPlane(img image.Image, palette *Palette) (*labelPlane, error) {
	b := img.Bounds()
	if palette == nil {
		return &labelPlane{bounds: b, ids: ClassIDs(img)}, nil
	}
	plane := &labelPlane{
		bounds: b,
		ids:    make([]uint8, b.Dx()*b.Dy()),
	}
	if palette.Ignore != nil {
		plane.ignored = make([]bool, len(plane.ids))
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			c.A = 255
			if palette.Ignore != nil && c == *palette.Ignore {
				plane.ignored[i] = true
				i++
				continue
			}
			id, ok := palette.Classes[c]
			if !ok {
				return nil, errors.Errorf("label color %v at (%d, %d) is not in the palette", c, x, y)
			}
			plane.ids[i] = id
			i++
		}
	}
	return plane, nil
}

// ClassIDs returns the class id plane of a label raster that stores class ids
// as pixel values, row-major. Gray rasters use the gray value, paletted
// rasters the palette index and anything else the red channel.
func ClassIDs(img image.Image) []uint8 {
	b := img.Bounds()
	ids := make([]uint8, 0, b.Dx()*b.Dy())
	if gray, ok := img.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := gray.PixOffset(b.Min.X, y)
			ids = append(ids, gray.Pix[start:start+b.Dx()]...)
		}
		return ids
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			ids = append(ids, rawClass(img, x, y))
		}
	}
	return ids
}

func rawClass(img image.Image, x, y int) uint8 {
	switch m := img.(type) {
	case *image.Gray:
		return m.GrayAt(x, y).Y
	case *image.Paletted:
		return m.ColorIndexAt(x, y)
	}
	r, _, _, _ := img.At(x, y).RGBA()
	return uint8(r >> 8)
}
