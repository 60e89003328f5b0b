// Package datasets holds loaders that plug into the pool: workers that decode
// one task each and helpers that run them over a whole source.
package datasets

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch is returned when samples and labels differ in length.
	ErrSizeMismatch = errors.New("samples and labels sizes differ")

	// ErrShapeMismatch is returned when samples of one dataset have
	// different shapes.
	ErrShapeMismatch = errors.New("samples have different shapes")
)

// RecordProvider gives indexed access to labeled samples.
type RecordProvider interface {
	Len() (int, error)
	Record(i int) (x []float64, y int)
}

// Dataset is a dense set of flattened samples with integer labels.
type Dataset struct {
	X     [][]float64
	Y     []int
	Names map[int]string // label -> human readable name
	Shape []int          // shape of one raw sample before flattening
}

var _ RecordProvider = (*Dataset)(nil)

// Len returns the number of samples, or ErrSizeMismatch when X and Y
// disagree.
func (d *Dataset) Len() (int, error) {
	if len(d.X) != len(d.Y) {
		return 0, fmt.Errorf("%w: %d and %d", ErrSizeMismatch, len(d.X), len(d.Y))
	}
	return len(d.X), nil
}

// Record returns sample i and its label. It panics if i is out of range.
func (d *Dataset) Record(i int) ([]float64, int) {
	return d.X[i], d.Y[i]
}

// Classes returns the number of distinct labels.
func (d *Dataset) Classes() int {
	seen := make(map[int]struct{}, len(d.Names))
	for _, y := range d.Y {
		seen[y] = struct{}{}
	}
	return len(seen)
}
