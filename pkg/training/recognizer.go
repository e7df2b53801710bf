package training

import (
	"fmt"
	"image"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/texture"
)

// UnknownName is reported for faces that do not resolve to a trained person.
const UnknownName = "unknown"

// DefaultDistanceThreshold is the largest accepted LBPH distance.
const DefaultDistanceThreshold = 60.0

// Identity is the classification of one detected face.
type Identity struct {
	Name     string           `json:"name"`
	Label    int              `json:"label"`
	Distance float64          `json:"distance"`
	Known    bool             `json:"known"`
	Region   detection.Region `json:"region"`
}

// Recognizer identifies faces with a trained classifier.
type Recognizer struct {
	classifier texture.Classifier
	labels     *texture.LabelMap
	detector   detection.Detector
	threshold  float64
	faceSize   int
}

// NewRecognizer wires a trained classifier to a detector.
func NewRecognizer(classifier texture.Classifier, labels *texture.LabelMap, faceSize int, detector detection.Detector, threshold float64) *Recognizer {
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	return &Recognizer{
		classifier: classifier,
		labels:     labels,
		detector:   detector,
		threshold:  threshold,
		faceSize:   faceSize,
	}
}

// LoadRecognizer loads both training artifacts. Missing files, parse errors
// and model labels absent from the label map are all fatal.
func LoadRecognizer(modelPath, labelsPath string, detector detection.Detector, threshold float64) (*Recognizer, error) {
	model, faceSize, err := texture.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	labels, err := texture.LoadLabelMap(labelsPath)
	if err != nil {
		return nil, err
	}
	if err := labels.Covers(model.Labels()); err != nil {
		return nil, fmt.Errorf("%s and %s are inconsistent: %w", modelPath, labelsPath, err)
	}
	return NewRecognizer(model, labels, faceSize, detector, threshold), nil
}

// Threshold returns the distance threshold.
func (r *Recognizer) Threshold() float64 {
	return r.threshold
}

// Resolve turns a prediction into an identity. Distances at or below the
// threshold with a known label resolve to the person's name.
func (r *Recognizer) Resolve(label int, distance float64) Identity {
	id := Identity{Name: UnknownName, Label: label, Distance: distance}
	if distance <= r.threshold {
		if name, ok := r.labels.Name(label); ok {
			id.Name = name
			id.Known = true
		}
	}
	return id
}

// Identify classifies the single face in img.
func (r *Recognizer) Identify(img image.Image) (Identity, error) {
	region, err := r.detector.Detect(img).Single()
	if err != nil {
		return Identity{}, err
	}
	return r.classify(img, region)
}

// IdentifyAll classifies every detected face in img.
func (r *Recognizer) IdentifyAll(img image.Image) ([]Identity, error) {
	res := r.detector.Detect(img)

	identities := make([]Identity, 0, res.Count)
	for _, region := range res.Regions {
		id, err := r.classify(img, region)
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	return identities, nil
}

func (r *Recognizer) classify(img image.Image, region detection.Region) (Identity, error) {
	face := imageutil.CanonicalFace(img, region.Rect(), r.faceSize)
	label, distance, err := r.classifier.Predict(face)
	if err != nil {
		return Identity{}, fmt.Errorf("prediction failed: %w", err)
	}
	id := r.Resolve(label, distance)
	id.Region = region
	return id, nil
}
