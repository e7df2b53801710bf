// Package detection locates faces in decoded images.
//
// Detectors never return errors from Detect: any internal failure is logged
// and reported as zero faces, so a broken detector can only ever reject.
package detection

import (
	"errors"
	"image"
)

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrMultipleFaces is returned when multiple faces are detected.
var ErrMultipleFaces = errors.New("multiple faces detected")

// Region is a face bounding box in pixel coordinates relative to the image origin.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Result is the outcome of one detection pass.
type Result struct {
	Count   int
	Regions []Region
}

// Single returns the only detected region or the matching detection-count error.
func (r Result) Single() (Region, error) {
	switch {
	case r.Count == 0:
		return Region{}, ErrNoFaceDetected
	case r.Count > 1:
		return Region{}, ErrMultipleFaces
	}
	return r.Regions[0], nil
}

// Detector finds face regions in an image.
type Detector interface {
	Detect(img image.Image) Result
	Name() string
}

// NewResult builds a Result from regions, clamping each one to the image
// size and dropping those left empty.
func NewResult(regions []Region, width, height int) Result {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		if c, ok := ClampRegion(r, width, height); ok {
			kept = append(kept, c)
		}
	}
	return Result{Count: len(kept), Regions: kept}
}

// ClampRegion clips r to a width×height image. It reports false when nothing remains.
func ClampRegion(r Region, width, height int) (Region, bool) {
	rect := r.Rect().Intersect(image.Rect(0, 0, width, height))
	if rect.Empty() {
		return Region{}, false
	}
	return Region{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}, true
}
