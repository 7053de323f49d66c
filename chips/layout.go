package chips

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory and file names of a prepared dataset.
//
//	<root>/images/*        source orthomosaics
//	<root>/labels/*        source label rasters
//	<root>/image-chips/*   generated image chips
//	<root>/label-chips/*   generated label chips
//	<root>/train.txt       training manifest
//	<root>/valid.txt       validation manifest
const (
	ImagesDirName     = "images"
	LabelsDirName     = "labels"
	ImageChipsDirName = "image-chips"
	LabelChipsDirName = "label-chips"

	ChipExt = ".png"

	TrainSplit = "train"
	ValidSplit = "valid"
)

// Layout resolves every path of a dataset rooted at Root. Image and label chip
// paths are built from the same chip name, so a label chip is always found by
// joining the label-chips directory with the image chip's name.
type Layout struct {
	Root string
}

// NewLayout returns the Layout for root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) ImagesDir() string     { return filepath.Join(l.Root, ImagesDirName) }
func (l Layout) LabelsDir() string     { return filepath.Join(l.Root, LabelsDirName) }
func (l Layout) ImageChipsDir() string { return filepath.Join(l.Root, ImageChipsDirName) }
func (l Layout) LabelChipsDir() string { return filepath.Join(l.Root, LabelChipsDirName) }

// ImageChip returns the path of the image chip called name.
func (l Layout) ImageChip(name string) string {
	return filepath.Join(l.ImageChipsDir(), ChipFileName(name))
}

// LabelChip returns the path of the label chip paired with the image chip called name.
func (l Layout) LabelChip(name string) string {
	return filepath.Join(l.LabelChipsDir(), ChipFileName(name))
}

// Manifest returns the path of the manifest for split, e.g. "train" -> <root>/train.txt.
func (l Layout) Manifest(split string) string {
	return filepath.Join(l.Root, split+".txt")
}

// ChipsExist reports whether the image and label chip directories exist.
func (l Layout) ChipsExist() (images, labels bool) {
	return dirExists(l.ImageChipsDir()), dirExists(l.LabelChipsDir())
}

// ChipName is the file name shared by the image and label chip cut at grid
// position (row, col) of scene.
func ChipName(scene string, row, col int) string {
	return fmt.Sprintf("%s-%03d-%03d%s", scene, row, col, ChipExt)
}

// ChipFileName normalizes a manifest entry into a chip file name: entries
// written without the ChipExt suffix get it appended.
func ChipFileName(name string) string {
	if !strings.HasSuffix(name, ChipExt) {
		return name + ChipExt
	}
	return name
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
