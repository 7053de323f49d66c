package main

import (
	"image"
	"math/rand"
	"os"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/Noofbiz/droneSeg/chips"
	"github.com/Noofbiz/droneSeg/datasets"
)

func writeChips(t *testing.T, layout chips.Layout, names ...string) {
	t.Helper()
	for _, dir := range []string{layout.ImageChipsDir(), layout.LabelChipsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s failed: %v", dir, err)
		}
	}
	for _, name := range names {
		if err := imaging.Save(image.NewNRGBA(image.Rect(0, 0, 4, 4)), layout.ImageChip(name)); err != nil {
			t.Fatalf("failed to write image chip: %v", err)
		}
		if err := imaging.Save(image.NewGray(image.Rect(0, 0, 4, 4)), layout.LabelChip(name)); err != nil {
			t.Fatalf("failed to write label chip: %v", err)
		}
	}
}

func TestEpochBatches(t *testing.T) {
	layout := chips.NewLayout(t.TempDir())
	names := []string{"a.png", "b.png", "c.png"}
	writeChips(t, layout, names...)
	ds := datasets.NewChipDataset("valid", layout, names,
		datasets.WithBatchSize(2), datasets.WithRand(rand.New(rand.NewSource(1))))

	batches, err := epochBatches(ds)
	if err != nil {
		t.Fatalf("epochBatches failed: %v", err)
	}
	if batches != 2 {
		t.Fatalf("expected 2 batches, got %d", batches)
	}
}

// TestEpochBatches_ReportsErrors: a chip that cannot be loaded is an error,
// not the end of the epoch.
func TestEpochBatches_ReportsErrors(t *testing.T) {
	layout := chips.NewLayout(t.TempDir())
	names := []string{"a.png", "b.png"}
	writeChips(t, layout, names...)
	if err := os.Remove(layout.LabelChip("b.png")); err != nil {
		t.Fatalf("failed to remove label chip: %v", err)
	}
	ds := datasets.NewChipDataset("valid", layout, names, datasets.WithBatchSize(1))

	if _, err := epochBatches(ds); err == nil {
		t.Fatalf("expected an error for the missing label chip")
	}
}
