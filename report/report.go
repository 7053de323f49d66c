// Package report summarizes the class distribution of a chip dataset and
// plots it.
package report

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/droneSeg/datasets"
)

// ClassHistogram counts labeled pixels per class.
type ClassHistogram struct {
	Name   string
	Chips  int
	Pixels []int64
}

// Total number of pixels counted.
func (h *ClassHistogram) Total() int64 {
	var total int64
	for _, n := range h.Pixels {
		total += n
	}
	return total
}

// Fraction of the pixels that belong to class.
func (h *ClassHistogram) Fraction(class int) float64 {
	total := h.Total()
	if total == 0 || class < 0 || class >= len(h.Pixels) {
		return 0
	}
	return float64(h.Pixels[class]) / float64(total)
}

func (h *ClassHistogram) String() string {
	s := fmt.Sprintf("%s: %d chips, %d pixels\n", h.Name, h.Chips, h.Total())
	for class, n := range h.Pixels {
		s += fmt.Sprintf("  %-12s %12d  %6.2f%%\n", className(class), n, 100*h.Fraction(class))
	}
	return s
}

// Histogram reads every example of ds and counts the pixels of each class.
func Histogram(ctx context.Context, name string, ds datasets.Dataset) (*ClassHistogram, error) {
	h := &ClassHistogram{Name: name}
	for i := 0; i < ds.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := ds.Example(i)
		if err != nil {
			return nil, errors.WithMessagef(err, "histogram of %q", name)
		}
		if h.Pixels == nil {
			h.Pixels = make([]int64, s.NumClasses)
		}
		if s.NumClasses != len(h.Pixels) {
			return nil, errors.Errorf("chip %q has %d classes, expected %d", s.Name, s.NumClasses, len(h.Pixels))
		}
		for p := 0; p < s.Height*s.Width; p++ {
			oneHot := s.Label[p*s.NumClasses : (p+1)*s.NumClasses]
			for class, v := range oneHot {
				if v != 0 {
					h.Pixels[class]++
					break
				}
			}
		}
		h.Chips++
	}
	return h, nil
}

// PlotClassHistogram writes a bar chart with the class fractions of each
// histogram, side by side, to outPath. The format follows the extension.
func PlotClassHistogram(outPath string, hists ...*ClassHistogram) error {
	if len(hists) == 0 {
		return errors.New("no histogram to plot")
	}
	p := plot.New()
	p.Title.Text = "Pixels per class"
	p.Y.Label.Text = "fraction of pixels"

	numClasses := 0
	for _, h := range hists {
		numClasses = max(numClasses, len(h.Pixels))
	}
	barWidth := vg.Points(60 / float64(len(hists)))
	for i, h := range hists {
		values := make(plotter.Values, numClasses)
		for class := range values {
			values[class] = h.Fraction(class)
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return errors.Wrapf(err, "bar chart of %q", h.Name)
		}
		bars.Color = barColors[i%len(barColors)]
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(hists)-1)/2)
		p.Add(bars)
		p.Legend.Add(h.Name, bars)
	}
	p.Legend.Top = true

	names := make([]string, numClasses)
	for class := range names {
		names[class] = className(class)
	}
	p.NominalX(names...)
	p.Add(plotter.NewGrid())

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create report directory for %q", outPath)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return errors.Wrapf(err, "failed to save %q", outPath)
	}
	return nil
}

var barColors = []color.Color{
	color.RGBA{R: 20, G: 80, B: 200, A: 255},
	color.RGBA{R: 200, G: 30, B: 30, A: 255},
	color.RGBA{R: 40, G: 120, B: 40, A: 255},
}

func className(class int) string {
	if class >= 0 && class < len(datasets.ClassNames) {
		return datasets.ClassNames[class]
	}
	return fmt.Sprintf("class %d", class)
}
