package datasets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// imageChannels is the number of channels kept from image chips (RGB).
const imageChannels = 3

// loadImagePixels decodes the image at path and returns its raw RGB values,
// row-major [height, width, 3]. No normalization is applied.
func loadImagePixels(path string) (pixels []uint8, height, width int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "failed to read image chip %q", path)
	}
	b := img.Bounds()
	height, width = b.Dy(), b.Dx()
	pixels = make([]uint8, 0, height*width*imageChannels)

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := nrgba.Pix[nrgba.PixOffset(b.Min.X, y):]
			for x := 0; x < width; x++ {
				pixels = append(pixels, row[4*x], row[4*x+1], row[4*x+2])
			}
		}
		return pixels, height, width, nil
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pixels = append(pixels, c.R, c.G, c.B)
		}
	}
	return pixels, height, width, nil
}

// loadClassIDs decodes the label chip at path and returns its class id plane.
func loadClassIDs(path string) (ids []uint8, height, width int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "failed to read label chip %q", path)
	}
	ids, height, width = MaskToClasses(img)
	return ids, height, width, nil
}
