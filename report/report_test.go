package report

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	qt "github.com/frankban/quicktest"

	"github.com/Noofbiz/droneSeg/chips"
	"github.com/Noofbiz/droneSeg/datasets"
)

// writeChip writes a 4x4 chip whose top row is class 3 and the rest class 0.
func writeChip(c *qt.C, layout chips.Layout, name string) {
	c.Assert(os.MkdirAll(layout.ImageChipsDir(), 0755), qt.IsNil)
	c.Assert(os.MkdirAll(layout.LabelChipsDir(), 0755), qt.IsNil)
	c.Assert(imaging.Save(imaging.New(4, 4, color.White), layout.ImageChip(name)), qt.IsNil)
	label := image.NewGray(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		label.SetGray(x, 0, color.Gray{Y: 3})
	}
	c.Assert(imaging.Save(label, layout.LabelChip(name)), qt.IsNil)
}

func testDataset(c *qt.C) *datasets.ChipDataset {
	layout := chips.NewLayout(c.TempDir())
	names := []string{chips.ChipName("s", 0, 0), chips.ChipName("s", 0, 1)}
	for _, name := range names {
		writeChip(c, layout, name)
	}
	return datasets.NewChipDataset("train", layout, names, datasets.WithRand(rand.New(rand.NewSource(1))))
}

func TestHistogram(t *testing.T) {
	c := qt.New(t)
	h, err := Histogram(context.Background(), "train", testDataset(c))
	c.Assert(err, qt.IsNil)
	c.Assert(h.Chips, qt.Equals, 2)
	c.Assert(h.Pixels, qt.DeepEquals, []int64{24, 0, 0, 8, 0, 0})
	c.Assert(h.Total(), qt.Equals, int64(32))
	c.Assert(h.Fraction(3), qt.Equals, 0.25)
	c.Assert(h.Fraction(datasets.NumClasses), qt.Equals, 0.0)
	c.Assert(h.String(), qt.Contains, "water")
}

func TestHistogram_Canceled(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Histogram(ctx, "train", testDataset(c))
	c.Assert(err, qt.ErrorIs, context.Canceled)
}

func TestPlotClassHistogram(t *testing.T) {
	c := qt.New(t)
	train := &ClassHistogram{Name: "train", Chips: 1, Pixels: []int64{1, 2, 3, 4, 5, 6}}
	valid := &ClassHistogram{Name: "valid", Chips: 1, Pixels: []int64{6, 5, 4, 3, 2, 1}}
	out := filepath.Join(c.TempDir(), "reports", "classes.png")
	c.Assert(PlotClassHistogram(out, train, valid), qt.IsNil)
	info, err := os.Stat(out)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Size() > 0, qt.IsTrue)

	c.Assert(PlotClassHistogram(out), qt.IsNotNil)
}
