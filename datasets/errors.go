package datasets

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is matched (errors.Is) by every *RangeError.
	ErrOutOfRange = errors.New("out of range")

	// ErrPartialChips means only one of the image-chips/label-chips directories
	// exists: a previous chip generation was interrupted or tampered with.
	ErrPartialChips = errors.New("only one of the chip directories exists")
)

// RangeError reports an index or class id outside [0, Limit).
type RangeError struct {
	What  string
	Value int
	Limit int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [0, %d)", e.What, e.Value, e.Limit)
}

// Is makes errors.Is(err, ErrOutOfRange) true for any *RangeError.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// ConfigError is returned when the dataset variant is not one of Resources.
type ConfigError struct {
	Variant   string
	Available []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unknown dataset %q, available datasets: %s", e.Variant, strings.Join(e.Available, ", "))
}
