//go:build dlib

// Package dlib provides a face detector backed by dlib through go-face.
// Build with -tags dlib; requires libdlib and the models fetched by
// "facelogin download-models".
package dlib

import (
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
)

// Detector finds faces with dlib's HOG detector.
type Detector struct {
	rec       *face.Recognizer
	modelPath string
	minSize   int
	mu        sync.Mutex
	log       *logrus.Entry
}

// NewDetector loads the dlib models from modelPath. The directory must contain
// shape_predictor_5_face_landmarks.dat and dlib_face_recognition_resnet_model_v1.dat.
func NewDetector(modelPath string, params detection.Params) (*Detector, error) {
	log := logging.Component("detector").WithField("backend", "dlib")
	log.Infof("Loading face detection models from: %s", modelPath)

	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	return &Detector{
		rec:       rec,
		modelPath: modelPath,
		minSize:   params.MinSize,
		log:       log,
	}, nil
}

// Name returns the backend name.
func (d *Detector) Name() string {
	return "dlib"
}

// Detect returns every face at least minSize pixels wide.
func (d *Detector) Detect(img image.Image) detection.Result {
	if img == nil || img.Bounds().Empty() {
		return detection.Result{}
	}

	data, err := imageutil.EncodeJPEG(img)
	if err != nil {
		d.log.WithError(err).Warn("Failed to encode image")
		return detection.Result{}
	}

	d.mu.Lock()
	if d.rec == nil {
		d.mu.Unlock()
		d.log.Warn("Detector is closed")
		return detection.Result{}
	}
	faces, err := d.rec.Recognize(data)
	d.mu.Unlock()
	if err != nil {
		d.log.WithError(err).Warn("Face detection failed, treating as no face")
		return detection.Result{}
	}

	var regions []detection.Region
	for _, f := range faces {
		rect := f.Rectangle
		if rect.Dx() < d.minSize || rect.Dy() < d.minSize {
			continue
		}
		regions = append(regions, detection.Region{
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
		})
	}

	bounds := img.Bounds()
	d.log.Debugf("Detected %d face(s) in image", len(regions))
	return detection.NewResult(regions, bounds.Dx(), bounds.Dy())
}

// Close releases the recognizer resources.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}
