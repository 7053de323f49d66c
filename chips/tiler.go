// Package chips cuts large source rasters (orthomosaics and their label
// rasters) into fixed-size, aligned chips.
//
// For every scene found under <root>/images and <root>/labels, the Tiler
// computes a grid of non-overlapping chip origins, crops the image and the
// label at the same regions and writes them as PNGs with the same file name
// under <root>/image-chips and <root>/label-chips.
//
// Label chips are single channel: pixel value == class id.
package chips

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Noofbiz/droneSeg/manifest"
)

// DefaultChipSize is the side, in pixels, of the chips used for Drone Deploy.
const DefaultChipSize = 300

var (
	ErrMissingSource     = errors.New("missing source directory")
	ErrUnpairedScene     = errors.New("scene has no matching image/label")
	ErrDimensionMismatch = errors.New("image and label dimensions differ")
	ErrChipsExist        = errors.New("chip directory already exists")
	ErrIgnoredPixels     = errors.New("label chip has pixels with the ignore color")
)

// Scene is one source image and its label raster.
type Scene struct {
	Name      string
	ImagePath string
	LabelPath string
}

// Result summarizes a Tiler run.
type Result struct {
	Scenes  int
	Chips   int
	Skipped int

	// Splits holds the chip names assigned to each split, only populated when
	// the Tiler has a Splitter.
	Splits map[string][]string
}

// Tiler configures how scenes are cut into chips. The zero value is not
// usable, use NewTiler.
type Tiler struct {
	ChipSize int
	Edge     EdgePolicy

	// ImageFill and LabelFill are used for padded edge chips.
	ImageFill color.Color
	LabelFill uint8

	// Palette converts RGB label rasters to class ids. Nil if label rasters
	// store class ids directly.
	Palette *Palette

	// SkipIgnored drops chips whose label region touches the palette's ignore
	// color. If false, such a chip is an ErrIgnoredPixels error: ignored pixels
	// have no class id to store.
	SkipIgnored bool

	// Splitter, if set, makes the Tiler write the train and valid manifests
	// (possibly empty). Existing manifests are never overwritten.
	Splitter Splitter

	// Progress shows a progress bar over scenes.
	Progress bool

	Logger *zap.Logger
}

// NewTiler returns a Tiler with chips of size x size pixels, padded edges and
// black/class 0 fill.
func NewTiler(size int) *Tiler {
	return &Tiler{
		ChipSize:  size,
		Edge:      EdgePad,
		ImageFill: color.Black,
		Logger:    zap.NewNop(),
	}
}

// NewDroneDeployTiler returns a Tiler for the Drone Deploy archives: color
// label rasters decoded with DroneDeployPalette, chips touching the ignore
// color skipped, and scenes assigned to train/valid by DefaultSplit.
func NewDroneDeployTiler(size int) *Tiler {
	t := NewTiler(size)
	t.Palette = DroneDeployPalette
	t.SkipIgnored = true
	t.Splitter = DefaultSplit
	return t
}

// Run chips every scene of layout. It fails if either chip directory already
// exists: whether to re-chip is the caller's decision. On failure the partially
// written chip directories are removed.
func (t *Tiler) Run(ctx context.Context, layout Layout) (result *Result, err error) {
	if t.ChipSize <= 0 {
		return nil, errors.Errorf("invalid chip size %d", t.ChipSize)
	}
	logger := t.logger()

	scenes, err := FindScenes(layout)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{layout.ImageChipsDir(), layout.LabelChipsDir()} {
		if _, statErr := os.Stat(dir); statErr == nil {
			return nil, errors.Wrapf(ErrChipsExist, "%q", dir)
		}
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(layout.ImageChipsDir())
			_ = os.RemoveAll(layout.LabelChipsDir())
		}
	}()
	for _, dir := range []string{layout.ImageChipsDir(), layout.LabelChipsDir()} {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create chip directory %q", dir)
		}
	}

	logger.Info("creating chips",
		zap.String("root", layout.Root),
		zap.Int("scenes", len(scenes)),
		zap.Int("chip_size", t.ChipSize),
		zap.Stringer("edge", t.Edge))

	var bar *progressbar.ProgressBar
	if t.Progress {
		bar = progressbar.Default(int64(len(scenes)), "creating chips")
	}

	result = &Result{}
	if t.Splitter != nil {
		result.Splits = map[string][]string{TrainSplit: {}, ValidSplit: {}}
	}
	for _, scene := range scenes {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		var names []string
		var skipped int
		names, skipped, err = t.ChipScene(layout, scene)
		if err != nil {
			return nil, err
		}
		result.Scenes++
		result.Chips += len(names)
		result.Skipped += skipped
		if t.Splitter != nil {
			split := t.Splitter.Split(scene.Name)
			result.Splits[split] = append(result.Splits[split], names...)
		}
		logger.Debug("scene chipped",
			zap.String("scene", scene.Name),
			zap.Int("chips", len(names)),
			zap.Int("skipped", skipped))
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if err = t.writeManifests(layout, result.Splits); err != nil {
		return nil, err
	}
	logger.Info("chips created", zap.Int("chips", result.Chips), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (t *Tiler) writeManifests(layout Layout, splits map[string][]string) error {
	keys := make([]string, 0, len(splits))
	for split := range splits {
		keys = append(keys, split)
	}
	sort.Strings(keys)
	for _, split := range keys {
		path := layout.Manifest(split)
		if fileExists(path) {
			t.logger().Info("manifest already exists, keeping it", zap.String("manifest", path))
			continue
		}
		if err := manifest.Write(path, splits[split]); err != nil {
			return err
		}
	}
	return nil
}

// ChipScene cuts one scene and writes its chips. It returns the names of the
// chips written, in row-major grid order, and how many were skipped.
func (t *Tiler) ChipScene(layout Layout, scene Scene) (names []string, skipped int, err error) {
	if err = checkDimensions(scene); err != nil {
		return nil, 0, err
	}
	img, err := imaging.Open(scene.ImagePath)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "scene %q: failed to decode image %q", scene.Name, scene.ImagePath)
	}
	labelImg, err := imaging.Open(scene.LabelPath)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "scene %q: failed to decode label %q", scene.Name, scene.LabelPath)
	}
	plane, err := classPlane(labelImg, t.Palette)
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "scene %q", scene.Name)
	}

	bounds := img.Bounds()
	rows, cols := ChipGrid(bounds.Dx(), bounds.Dy(), t.ChipSize, t.Edge)
	names = make([]string, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			rect := ChipRect(bounds, t.ChipSize, row, col)
			name := ChipName(scene.Name, row, col)
			labelChip, ignored := t.labelChip(plane, rect)
			if ignored {
				if !t.SkipIgnored {
					return nil, 0, errors.Wrapf(ErrIgnoredPixels, "scene %q, chip %q", scene.Name, name)
				}
				skipped++
				continue
			}
			if err = imaging.Save(t.imageChip(img, rect), layout.ImageChip(name)); err != nil {
				return nil, 0, errors.Wrapf(err, "scene %q: failed to write image chip %q", scene.Name, name)
			}
			if err = imaging.Save(labelChip, layout.LabelChip(name)); err != nil {
				return nil, 0, errors.Wrapf(err, "scene %q: failed to write label chip %q", scene.Name, name)
			}
			names = append(names, name)
		}
	}
	return names, skipped, nil
}

// imageChip crops rect out of img. Parts of rect outside img are filled with ImageFill.
func (t *Tiler) imageChip(img image.Image, rect image.Rectangle) *image.NRGBA {
	crop := imaging.Crop(img, rect)
	if crop.Bounds().Dx() == t.ChipSize && crop.Bounds().Dy() == t.ChipSize {
		return crop
	}
	fill := t.ImageFill
	if fill == nil {
		fill = color.Black
	}
	chip := imaging.New(t.ChipSize, t.ChipSize, fill)
	return imaging.Paste(chip, crop, image.Pt(0, 0))
}

// labelChip builds the single channel label chip for rect, and reports whether
// any pixel of it carries the ignore color.
func (t *Tiler) labelChip(plane *labelPlane, rect image.Rectangle) (chip *image.Gray, ignored bool) {
	chip = image.NewGray(image.Rect(0, 0, t.ChipSize, t.ChipSize))
	if t.LabelFill != 0 {
		for i := range chip.Pix {
			chip.Pix[i] = t.LabelFill
		}
	}
	inside := rect.Intersect(plane.bounds)
	for y := inside.Min.Y; y < inside.Max.Y; y++ {
		for x := inside.Min.X; x < inside.Max.X; x++ {
			id, ign := plane.at(x, y)
			if ign {
				ignored = true
			}
			chip.SetGray(x-rect.Min.X, y-rect.Min.Y, color.Gray{Y: id})
		}
	}
	return chip, ignored
}

func (t *Tiler) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// checkDimensions compares image and label sizes from their headers only.
func checkDimensions(scene Scene) error {
	imgCfg, err := decodeConfig(scene.ImagePath)
	if err != nil {
		return errors.WithMessagef(err, "scene %q", scene.Name)
	}
	labelCfg, err := decodeConfig(scene.LabelPath)
	if err != nil {
		return errors.WithMessagef(err, "scene %q", scene.Name)
	}
	if imgCfg.Width != labelCfg.Width || imgCfg.Height != labelCfg.Height {
		return errors.Wrapf(ErrDimensionMismatch, "scene %q: image is %dx%d, label is %dx%d",
			scene.Name, imgCfg.Width, imgCfg.Height, labelCfg.Width, labelCfg.Height)
	}
	return nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, errors.Wrapf(err, "failed to read header of %q", path)
	}
	return cfg, nil
}

// Suffixes stripped from source file names to get the scene name, as used by
// the Drone Deploy archives ("<scene>-ortho.tif", "<scene>-label.png").
var (
	ImageSuffixes = []string{"-ortho"}
	LabelSuffixes = []string{"-label"}
)

// FindScenes pairs every file in layout's images directory with the file in
// the labels directory that has the same scene name. Scenes are sorted by name.
func FindScenes(layout Layout) ([]Scene, error) {
	images, err := listScenes(layout.ImagesDir(), ImageSuffixes)
	if err != nil {
		return nil, err
	}
	labels, err := listScenes(layout.LabelsDir(), LabelSuffixes)
	if err != nil {
		return nil, err
	}

	scenes := make([]Scene, 0, len(images))
	for name, imagePath := range images {
		labelPath, found := labels[name]
		if !found {
			return nil, errors.Wrapf(ErrUnpairedScene, "scene %q: no label for image %q", name, imagePath)
		}
		scenes = append(scenes, Scene{Name: name, ImagePath: imagePath, LabelPath: labelPath})
	}
	for name, labelPath := range labels {
		if _, found := images[name]; !found {
			return nil, errors.Wrapf(ErrUnpairedScene, "scene %q: no image for label %q", name, labelPath)
		}
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Name < scenes[j].Name })
	return scenes, nil
}

func listScenes(dir string, suffixes []string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingSource, "%q", dir)
		}
		return nil, errors.Wrapf(err, "failed to list %q", dir)
	}
	scenes := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := sceneName(entry.Name(), suffixes)
		path := filepath.Join(dir, entry.Name())
		if previous, found := scenes[name]; found {
			return nil, errors.Errorf("scene %q has two source files: %q and %q", name, previous, path)
		}
		scenes[name] = path
	}
	return scenes, nil
}

func sceneName(fileName string, suffixes []string) string {
	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	for _, suffix := range suffixes {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != name {
			return trimmed
		}
	}
	return name
}
