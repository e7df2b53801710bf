package detection

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facelogin/pkg/logging"
)

// Params holds cascade scan settings shared by the detector backends.
type Params struct {
	MinSize      int     // smallest face side in pixels
	MaxSize      int     // largest face side; 0 means the image's larger side
	ScaleFactor  float64 // window growth per scale step
	ShiftFactor  float64 // window step as a fraction of its size
	MinNeighbors int     // neighbor votes (Haar backend)
	MinQuality   float64 // minimum cluster score (pigo backend)
	IoUThreshold float64 // cluster overlap threshold (pigo backend)
}

// DefaultParams returns the documented detector defaults.
func DefaultParams() Params {
	return Params{
		MinSize:      100,
		ScaleFactor:  1.1,
		ShiftFactor:  0.1,
		MinNeighbors: 5,
		MinQuality:   5.0,
		IoUThreshold: 0.2,
	}
}

// PigoDetector detects faces with a pigo pixel-intensity-comparison cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     Params
	log        *logrus.Entry
}

// NewPigoDetector unpacks a pigo cascade. A malformed cascade is reported as an error.
func NewPigoDetector(cascade []byte, params Params) (d *PigoDetector, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("invalid pigo cascade: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	return &PigoDetector{
		classifier: classifier,
		params:     params,
		log:        logging.Component("detector").WithField("backend", "pigo"),
	}, nil
}

// LoadPigoDetector reads a cascade file from disk.
func LoadPigoDetector(path string, params Params) (*PigoDetector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade %s: %w", path, err)
	}
	return NewPigoDetector(cascade, params)
}

// Name returns the backend name.
func (d *PigoDetector) Name() string {
	return "pigo"
}

// Detect runs the cascade over img. Panics inside the cascade are mapped to zero faces.
func (d *PigoDetector) Detect(img image.Image) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("Detection failed, treating as no face")
			res = Result{}
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return Result{}
	}

	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	maxSize := d.params.MaxSize
	if maxSize <= 0 {
		maxSize = max(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	var regions []Region
	for _, det := range dets {
		if float64(det.Q) < d.params.MinQuality {
			continue
		}
		regions = append(regions, Region{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
		})
	}

	res = NewResult(regions, cols, rows)
	d.log.WithFields(logging.Fields{
		"raw":   len(dets),
		"faces": res.Count,
	}).Debug("Detection finished")
	return res
}
