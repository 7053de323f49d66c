package datasets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/Noofbiz/droneSeg/chips"
	"github.com/Noofbiz/droneSeg/manifest"
)

func seeded(seed int64) func() *rand.Rand {
	return func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	}
}

func TestNewDroneDeploy_UnknownVariant(t *testing.T) {
	fetcher := &fakeFetcher{}
	_, err := NewDroneDeploy(context.Background(), t.TempDir(), "dataset-huge",
		DroneDeployOptions{Download: true, LoadSplits: true, Fetcher: fetcher})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Variant != "dataset-huge" || !reflect.DeepEqual(cfgErr.Available, []string{"dataset-medium", "dataset-sample"}) {
		t.Fatalf("unexpected config error: %+v", cfgErr)
	}
	if fetcher.downloads != 0 {
		t.Fatalf("unknown variant must fail before any download")
	}
}

// TestNewDroneDeploy_LoadsExistingChips: 4 chips on disk and a manifest with
// all of them give a 4 sample dataset whose examples cover every chip once.
func TestNewDroneDeploy_LoadsExistingChips(t *testing.T) {
	root := t.TempDir()
	layout := chips.NewLayout(filepath.Join(root, DefaultVariant))
	names := writeChips(t, layout, 4, 6)
	if err := manifest.Write(layout.Manifest(chips.TrainSplit), names); err != nil {
		t.Fatalf("failed to write train manifest: %v", err)
	}
	if err := manifest.Write(layout.Manifest(chips.ValidSplit), names[:1]); err != nil {
		t.Fatalf("failed to write valid manifest: %v", err)
	}

	dd, err := NewDroneDeploy(context.Background(), root, DefaultVariant,
		DroneDeployOptions{LoadSplits: true, NewRand: seeded(11)})
	if err != nil {
		t.Fatalf("NewDroneDeploy failed: %v", err)
	}
	if got := dd.Train.Len(); got != 4 {
		t.Fatalf("expected 4 training chips, got %d", got)
	}
	if got := dd.Valid.Len(); got != 1 {
		t.Fatalf("expected 1 validation chip, got %d", got)
	}

	seen := make(map[string]int)
	for i := 0; i < dd.Train.Len(); i++ {
		s, err := dd.Train.Example(i)
		if err != nil {
			t.Fatalf("Example(%d) failed: %v", i, err)
		}
		seen[s.Name]++
	}
	for _, name := range names {
		if seen[name] != 1 {
			t.Fatalf("chip %s seen %d times", name, seen[name])
		}
	}
}

func TestNewDroneDeploy_MissingManifest(t *testing.T) {
	root := t.TempDir()
	layout := chips.NewLayout(filepath.Join(root, DefaultVariant))
	names := writeChips(t, layout, 2, 4)
	if err := manifest.Write(layout.Manifest(chips.TrainSplit), names); err != nil {
		t.Fatalf("failed to write train manifest: %v", err)
	}

	_, err := NewDroneDeploy(context.Background(), root, DefaultVariant, DroneDeployOptions{LoadSplits: true})
	if !errors.Is(err, manifest.ErrMissingManifest) {
		t.Fatalf("expected missing manifest error, got %v", err)
	}
}

func TestNewDroneDeploy_PartialChips(t *testing.T) {
	root := t.TempDir()
	layout := chips.NewLayout(filepath.Join(root, DefaultVariant))
	if err := os.MkdirAll(layout.ImageChipsDir(), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	_, err := NewDroneDeploy(context.Background(), root, DefaultVariant, DroneDeployOptions{LoadSplits: true})
	if !errors.Is(err, ErrPartialChips) {
		t.Fatalf("expected ErrPartialChips, got %v", err)
	}
}

// Drone Deploy label colors.
var (
	vegetationColor = color.NRGBA{R: 60, G: 180, B: 75, A: 255}
	carColor        = color.NRGBA{R: 0, G: 130, B: 200, A: 255}
	ignoreColor     = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
)

// writeSourceScene writes a 900x300 orthomosaic and its color label raster,
// as found in the archives: the first 300x300 chip is vegetation, the second
// car and the third vegetation with one ignore colored pixel.
func writeSourceScene(t *testing.T, layout chips.Layout, scene string) {
	t.Helper()
	for _, dir := range []string{layout.ImagesDir(), layout.LabelsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s failed: %v", dir, err)
		}
	}
	img := imaging.New(900, 300, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	if err := imaging.Save(img, filepath.Join(layout.ImagesDir(), scene+"-ortho.png")); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	label := imaging.New(900, 300, vegetationColor)
	draw.Draw(label, image.Rect(300, 0, 600, 300), image.NewUniform(carColor), image.Point{}, draw.Src)
	label.SetNRGBA(750, 150, ignoreColor)
	if err := imaging.Save(label, filepath.Join(layout.LabelsDir(), scene+"-label.png")); err != nil {
		t.Fatalf("failed to write label: %v", err)
	}
}

// fakeFetcher "downloads" a dummy archive and "extracts" it by creating a
// dataset directory with one scene, without manifests.
type fakeFetcher struct {
	downloads, extractions int
	variant                string
	t                      *testing.T
}

func (f *fakeFetcher) Download(_ context.Context, url, dst string) error {
	f.downloads++
	return os.WriteFile(dst, []byte(url), 0644)
}

func (f *fakeFetcher) Extract(archive, dstDir string) error {
	f.extractions++
	writeSourceScene(f.t, chips.NewLayout(filepath.Join(dstDir, f.variant)), "scene")
	return nil
}

// TestNewDroneDeploy_DownloadChipAndLoad runs the default preparation on a
// fresh archive: color labels are decoded, the ignore chip is skipped and the
// splits are written and loaded.
func TestNewDroneDeploy_DownloadChipAndLoad(t *testing.T) {
	root := t.TempDir()
	fetcher := &fakeFetcher{variant: DefaultVariant, t: t}
	opts := DroneDeployOptions{
		Download:   true,
		LoadSplits: true,
		Fetcher:    fetcher,
		NewRand:    seeded(5),
	}

	dd, err := NewDroneDeploy(context.Background(), root, DefaultVariant, opts)
	if err != nil {
		t.Fatalf("NewDroneDeploy failed: %v", err)
	}
	if fetcher.downloads != 1 || fetcher.extractions != 1 {
		t.Fatalf("expected 1 download and 1 extraction, got %d and %d", fetcher.downloads, fetcher.extractions)
	}
	if _, err := os.Stat(dd.ArchivePath()); err != nil {
		t.Fatalf("archive not at %s: %v", dd.ArchivePath(), err)
	}
	for _, split := range []string{chips.TrainSplit, chips.ValidSplit} {
		if _, err := os.Stat(dd.Layout.Manifest(split)); err != nil {
			t.Fatalf("manifest %s not written: %v", split, err)
		}
	}

	// All chips of a scene go to the same split.
	split := dd.Train
	if split.Len() == 0 {
		split = dd.Valid
	}
	if got := dd.Train.Len() + dd.Valid.Len(); got != 2 || split.Len() != 2 {
		t.Fatalf("unexpected split sizes: train=%d valid=%d", dd.Train.Len(), dd.Valid.Len())
	}
	wantClass := map[string]int{
		chips.ChipName("scene", 0, 0): 2, // vegetation
		chips.ChipName("scene", 0, 1): 5, // car
	}
	for i := 0; i < split.Len(); i++ {
		s, err := split.Example(i)
		if err != nil {
			t.Fatalf("Example(%d) failed: %v", i, err)
		}
		want, found := wantClass[s.Name]
		if !found {
			t.Fatalf("unexpected chip %s", s.Name)
		}
		if s.Height != chips.DefaultChipSize || s.Width != chips.DefaultChipSize {
			t.Fatalf("unexpected chip size %dx%d", s.Width, s.Height)
		}
		for p := 0; p < s.Height*s.Width; p += 997 {
			if s.Label[p*s.NumClasses+want] != 1 {
				t.Fatalf("chip %s pixel %d: class %d not set", s.Name, p, want)
			}
		}
	}

	// Everything is in place now: a second run neither downloads, extracts nor re-chips.
	chipInfo, err := os.Stat(dd.Layout.ImageChip(chips.ChipName("scene", 0, 0)))
	if err != nil {
		t.Fatalf("chip missing: %v", err)
	}
	if _, err := NewDroneDeploy(context.Background(), root, DefaultVariant, opts); err != nil {
		t.Fatalf("second NewDroneDeploy failed: %v", err)
	}
	if fetcher.downloads != 1 || fetcher.extractions != 1 {
		t.Fatalf("second run fetched again: %d downloads, %d extractions", fetcher.downloads, fetcher.extractions)
	}
	again, err := os.Stat(dd.Layout.ImageChip(chips.ChipName("scene", 0, 0)))
	if err != nil {
		t.Fatalf("chip missing after second run: %v", err)
	}
	if !again.ModTime().Equal(chipInfo.ModTime()) {
		t.Fatalf("chips were re-created on the second run")
	}
}

func TestNewDroneDeploy_MissingSources(t *testing.T) {
	_, err := NewDroneDeploy(context.Background(), t.TempDir(), DefaultVariant, DroneDeployOptions{LoadSplits: true})
	if !errors.Is(err, chips.ErrMissingSource) {
		t.Fatalf("expected chips.ErrMissingSource, got %v", err)
	}
}
