// Package training builds the LBPH model from per-person image folders and
// runs offline recognition against it.
package training

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/texture"
)

// ErrNoTrainingData is returned when no usable image is found.
var ErrNoTrainingData = errors.New("no training images found")

// DefaultFaceSize is the canonical crop size fed to the classifier.
const DefaultFaceSize = 200

// Options configures dataset loading and training.
type Options struct {
	DataDir    string // one sub-directory per person
	ModelPath  string
	LabelsPath string
	Params     texture.Params
	FaceSize   int
	// CropFaces runs Detector on each image and keeps only single-face images,
	// cropped to the face.
	CropFaces bool
	Detector  detection.Detector
	// Progress receives progress bars; nil disables them.
	Progress io.Writer
}

// Dataset is the labeled, canonicalized training set.
type Dataset struct {
	Samples []texture.Sample
	Labels  *texture.LabelMap
	Files   int
	Skipped int
}

type imageFile struct {
	path  string
	label int
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// LoadDataset walks DataDir in sorted order, assigning label ids from 0 in
// directory order, and loads every image as a FaceSize×FaceSize grayscale crop.
// Unreadable images are skipped.
func LoadDataset(ctx context.Context, opts Options) (*Dataset, error) {
	log := logging.Component("training")

	if opts.FaceSize <= 0 {
		opts.FaceSize = DefaultFaceSize
	}
	if opts.CropFaces && opts.Detector == nil {
		return nil, errors.New("face cropping requires a detector")
	}

	entries, err := os.ReadDir(opts.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoTrainingData, opts.DataDir)
		}
		return nil, fmt.Errorf("failed to read training directory: %w", err)
	}

	ds := &Dataset{Labels: texture.NewLabelMap()}
	var files []imageFile
	for _, person := range entries {
		if !person.IsDir() {
			continue
		}
		label := ds.Labels.Add(person.Name())

		personDir := filepath.Join(opts.DataDir, person.Name())
		images, err := os.ReadDir(personDir)
		if err != nil {
			log.WithError(err).Warnf("Skipping unreadable directory %s", personDir)
			continue
		}
		for _, img := range images {
			if img.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(img.Name()))] {
				continue
			}
			files = append(files, imageFile{path: filepath.Join(personDir, img.Name()), label: label})
		}
	}
	ds.Files = len(files)

	bar := newBar(opts.Progress, len(files), "Loading images")
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		face, err := loadFace(f.path, opts)
		if err != nil {
			log.WithError(err).WithField("file", f.path).Warn("Skipping image")
			ds.Skipped++
		} else {
			ds.Samples = append(ds.Samples, texture.Sample{Image: face, Label: f.label})
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	log.WithFields(logging.Fields{
		"people":  ds.Labels.Len(),
		"images":  len(ds.Samples),
		"skipped": ds.Skipped,
	}).Info("Dataset loaded")
	return ds, nil
}

func loadFace(path string, opts Options) (*image.Gray, error) {
	img, err := imageutil.Open(path)
	if err != nil {
		return nil, err
	}

	if !opts.CropFaces {
		return imageutil.Canonical(img, opts.FaceSize), nil
	}

	region, err := opts.Detector.Detect(img).Single()
	if err != nil {
		return nil, err
	}
	return imageutil.CanonicalFace(img, region.Rect(), opts.FaceSize), nil
}

func newBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	if w == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
