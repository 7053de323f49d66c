package datasets

import (
	"image"

	"github.com/pkg/errors"

	"github.com/Noofbiz/droneSeg/chips"
)

// NumClasses is the number of semantic classes of the Drone Deploy labels.
const NumClasses = 6

// ClassNames indexed by class id.
var ClassNames = [NumClasses]string{
	"building",
	"clutter",
	"vegetation",
	"water",
	"ground",
	"car",
}

// ToCategorical one-hot encodes a row-major [height, width] plane of class ids
// into a row-major [height, width, numClasses] buffer: for each pixel exactly
// one of the numClasses values is 1.
//
// A class id >= numClasses is reported as a *RangeError, it is never clamped.
func ToCategorical(ids []uint8, height, width, numClasses int) ([]float32, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("invalid number of classes %d", numClasses)
	}
	if height < 0 || width < 0 || len(ids) != height*width {
		return nil, errors.Errorf("class plane has %d values, expected %dx%d=%d",
			len(ids), height, width, height*width)
	}
	oneHot := make([]float32, len(ids)*numClasses)
	for i, id := range ids {
		if int(id) >= numClasses {
			return nil, errors.WithStack(&RangeError{What: "class id", Value: int(id), Limit: numClasses})
		}
		oneHot[i*numClasses+int(id)] = 1
	}
	return oneHot, nil
}

// MaskToClasses extracts the row-major class id plane of a label mask. Gray
// masks use the gray value, others the first (red) channel.
func MaskToClasses(img image.Image) (ids []uint8, height, width int) {
	b := img.Bounds()
	return chips.ClassIDs(img), b.Dy(), b.Dx()
}
