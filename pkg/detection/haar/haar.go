//go:build gocv

// Package haar provides an OpenCV Haar cascade face detector.
// Build with -tags gocv; requires OpenCV 4 and a frontal-face cascade XML file.
package haar

import (
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/logging"
)

// Detector wraps a gocv cascade classifier.
type Detector struct {
	classifier gocv.CascadeClassifier
	params     detection.Params
	mu         sync.Mutex
	log        *logrus.Entry
}

// NewDetector loads a Haar cascade such as haarcascade_frontalface_default.xml.
func NewDetector(cascadePath string, params detection.Params) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier: %s", cascadePath)
	}

	d := &Detector{
		classifier: classifier,
		params:     params,
		log:        logging.Component("detector").WithField("backend", "haar"),
	}
	d.log.WithFields(logging.Fields{
		"cascade":       cascadePath,
		"min_size":      params.MinSize,
		"scale_factor":  params.ScaleFactor,
		"min_neighbors": params.MinNeighbors,
	}).Info("Face detector initialized")
	return d, nil
}

// Name returns the backend name.
func (d *Detector) Name() string {
	return "haar"
}

// Detect runs detectMultiScale on a grayscale copy of img.
func (d *Detector) Detect(img image.Image) (res detection.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("Detection failed, treating as no face")
			res = detection.Result{}
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return detection.Result{}
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		d.log.WithError(err).Warn("Failed to convert image")
		return detection.Result{}
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	var maxSize image.Point
	if d.params.MaxSize > 0 {
		maxSize = image.Pt(d.params.MaxSize, d.params.MaxSize)
	}

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.params.ScaleFactor,
		d.params.MinNeighbors,
		0,
		image.Pt(d.params.MinSize, d.params.MinSize),
		maxSize,
	)
	d.mu.Unlock()

	regions := make([]detection.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, detection.Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}

	bounds := img.Bounds()
	return detection.NewResult(regions, bounds.Dx(), bounds.Dy())
}

// Close releases the classifier.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
