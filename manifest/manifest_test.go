package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"
)

func TestLoad_TrimsAndSkipsEmptyLines(t *testing.T) {
	c := quicktest.New(t)
	path := filepath.Join(t.TempDir(), "train.txt")
	content := "scene-000-000.png\n  scene-000-001.png  \n\n\t\nscene-001-000\r\n"
	c.Assert(os.WriteFile(path, []byte(content), 0644), quicktest.IsNil)

	names, err := Load(path)
	c.Assert(err, quicktest.IsNil)
	c.Assert(names, quicktest.DeepEquals, []string{"scene-000-000.png", "scene-000-001.png", "scene-001-000"})
}

func TestLoad_Missing(t *testing.T) {
	c := quicktest.New(t)
	_, err := Load(filepath.Join(t.TempDir(), "valid.txt"))
	c.Assert(err, quicktest.IsNotNil)
	c.Assert(errors.Is(err, ErrMissingManifest), quicktest.IsTrue)
	c.Assert(errors.Is(err, os.ErrNotExist), quicktest.IsTrue)
}

func TestWrite(t *testing.T) {
	c := quicktest.New(t)
	path := filepath.Join(t.TempDir(), "train.txt")

	c.Assert(Write(path, []string{"a.png", "b.png"}), quicktest.IsNil)
	names, err := Load(path)
	c.Assert(err, quicktest.IsNil)
	c.Assert(names, quicktest.DeepEquals, []string{"a.png", "b.png"})

	// Write truncates.
	c.Assert(Write(path, []string{"z.png"}), quicktest.IsNil)
	names, err = Load(path)
	c.Assert(err, quicktest.IsNil)
	c.Assert(names, quicktest.DeepEquals, []string{"z.png"})

	// An empty split still gets a manifest.
	empty := filepath.Join(t.TempDir(), "valid.txt")
	c.Assert(Write(empty, nil), quicktest.IsNil)
	names, err = Load(empty)
	c.Assert(err, quicktest.IsNil)
	c.Assert(names, quicktest.HasLen, 0)
}
