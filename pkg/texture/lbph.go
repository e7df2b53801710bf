// Package texture implements the local binary pattern histogram (LBPH) face
// classifier used by the offline training and recognition commands.
package texture

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrNotTrained is returned when predicting with an empty model.
var ErrNotTrained = errors.New("classifier has not been trained")

// ErrImageTooSmall is returned for images that cannot fill the histogram grid.
var ErrImageTooSmall = errors.New("image too small for LBPH grid")

// Sample is one labeled grayscale training image.
type Sample struct {
	Image *image.Gray
	Label int
}

// Classifier is a trainable nearest-label face classifier. Lower distances are better.
type Classifier interface {
	Train(samples []Sample) error
	Predict(img *image.Gray) (label int, distance float64, err error)
}

// Params configures an LBPH classifier.
type Params struct {
	Radius    int
	Neighbors int
	GridX     int
	GridY     int
}

// DefaultParams returns radius 1, 8 neighbors and an 8×8 grid.
func DefaultParams() Params {
	return Params{Radius: 1, Neighbors: 8, GridX: 8, GridY: 8}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	switch {
	case p.Radius <= 0:
		return fmt.Errorf("radius must be positive, got %d", p.Radius)
	case p.Neighbors <= 0 || p.Neighbors > 16:
		return fmt.Errorf("neighbors must be between 1 and 16, got %d", p.Neighbors)
	case p.GridX <= 0 || p.GridY <= 0:
		return fmt.Errorf("invalid grid %dx%d", p.GridX, p.GridY)
	}
	return nil
}

// LBPH stores one spatial histogram per training image.
type LBPH struct {
	params     Params
	histograms [][]float64
	labels     []int
}

// NewLBPH creates an untrained classifier.
func NewLBPH(params Params) (*LBPH, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &LBPH{params: params}, nil
}

// Params returns the classifier parameters.
func (m *LBPH) Params() Params {
	return m.params
}

// Len returns the number of stored histograms.
func (m *LBPH) Len() int {
	return len(m.histograms)
}

// Labels returns the distinct labels known to the model in ascending order.
func (m *LBPH) Labels() []int {
	seen := make(map[int]bool)
	var labels []int
	for _, l := range m.labels {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	sort.Ints(labels)
	return labels
}

// Train discards any previous state and learns samples.
func (m *LBPH) Train(samples []Sample) error {
	if len(samples) == 0 {
		return errors.New("no training samples")
	}
	m.histograms = nil
	m.labels = nil
	return m.Update(samples)
}

// Update adds samples to the model without discarding existing ones.
func (m *LBPH) Update(samples []Sample) error {
	hists := make([][]float64, 0, len(samples))
	labels := make([]int, 0, len(samples))
	for i, s := range samples {
		if s.Image == nil {
			return fmt.Errorf("sample %d: missing image", i)
		}
		if s.Label < 0 {
			return fmt.Errorf("sample %d: negative label %d", i, s.Label)
		}
		h, err := m.histogram(s.Image)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		hists = append(hists, h)
		labels = append(labels, s.Label)
	}

	m.histograms = append(m.histograms, hists...)
	m.labels = append(m.labels, labels...)
	return nil
}

// Predict returns the label of the nearest stored histogram and its
// chi-square distance. Ties keep the earliest trained sample.
func (m *LBPH) Predict(img *image.Gray) (int, float64, error) {
	if len(m.histograms) == 0 {
		return -1, 0, ErrNotTrained
	}

	query, err := m.histogram(img)
	if err != nil {
		return -1, 0, err
	}

	label := -1
	best := math.MaxFloat64
	for i, h := range m.histograms {
		if d := ChiSquareDistance(h, query); d < best {
			best = d
			label = m.labels[i]
		}
	}
	return label, best, nil
}

func (m *LBPH) histogram(img *image.Gray) ([]float64, error) {
	codes, w, h := ExtendedLBP(img, m.params.Radius, m.params.Neighbors)
	if w < m.params.GridX || h < m.params.GridY {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return SpatialHistogram(codes, w, h, m.params.Neighbors, m.params.GridX, m.params.GridY), nil
}
