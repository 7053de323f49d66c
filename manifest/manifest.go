// Package manifest reads and writes split manifests: plain text files listing
// one chip name per line, e.g. <root>/train.txt and <root>/valid.txt.
package manifest

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingManifest is returned (wrapped) by Load when the manifest file does
// not exist. The error also matches os.ErrNotExist.
var ErrMissingManifest = errors.New("missing manifest")

type missingError struct {
	path string
	err  error
}

func (e *missingError) Error() string {
	return "missing manifest " + e.path + ": " + e.err.Error()
}

func (e *missingError) Is(target error) bool { return target == ErrMissingManifest }

func (e *missingError) Unwrap() error { return e.err }

// Load returns the entries of the manifest at path, in file order. Lines are
// trimmed and empty lines skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &missingError{path: path, err: err}
		}
		return nil, errors.Wrapf(err, "failed to open manifest %q", path)
	}
	defer func() { _ = f.Close() }()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %q", path)
	}
	return names, nil
}

// Write creates (or truncates) the manifest at path with one name per line.
func Write(path string, names []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open manifest %q for writing", path)
	}
	w := bufio.NewWriter(f)
	for _, name := range names {
		if _, err := w.WriteString(name + "\n"); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to write manifest %q", path)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write manifest %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close manifest %q", path)
}
