package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MrCodeEU/facelogin/pkg/auth"
	"github.com/MrCodeEU/facelogin/pkg/config"
	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/storage"
	"github.com/MrCodeEU/facelogin/pkg/storage/postgres"
)

// detectorFactory builds a detector and the function that releases it.
type detectorFactory func(cfg *config.Config) (detection.Detector, func(), error)

// detectorBackends holds the compiled-in detectors. Optional backends
// register themselves from build-tagged files.
var detectorBackends = map[string]detectorFactory{
	"pigo": func(cfg *config.Config) (detection.Detector, func(), error) {
		d, err := detection.LoadPigoDetector(cfg.Detection.CascadePath, detectorParams(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("%w (run 'facelogin download-models')", err)
		}
		return d, func() {}, nil
	},
}

var backendBuildTags = map[string]string{"haar": "gocv", "dlib": "dlib"}

const haarCascadeFile = "haarcascade_frontalface_default.xml"

// haarCascadePath uses cascade_path when it names an XML cascade and the
// downloaded OpenCV cascade otherwise.
func haarCascadePath(cfg *config.Config) string {
	if strings.HasSuffix(cfg.Detection.CascadePath, ".xml") {
		return cfg.Detection.CascadePath
	}
	return filepath.Join(cfg.Detection.ModelPath, haarCascadeFile)
}

func detectorParams(cfg *config.Config) detection.Params {
	d := cfg.Detection
	return detection.Params{
		MinSize:      d.MinSize,
		MaxSize:      d.MaxSize,
		ScaleFactor:  d.ScaleFactor,
		ShiftFactor:  d.ShiftFactor,
		MinNeighbors: d.MinNeighbors,
		MinQuality:   d.MinQuality,
		IoUThreshold: d.IoUThreshold,
	}
}

func newDetector(cfg *config.Config) (detection.Detector, func(), error) {
	factory, ok := detectorBackends[cfg.Detection.Backend]
	if !ok {
		if tag, known := backendBuildTags[cfg.Detection.Backend]; known {
			return nil, nil, fmt.Errorf("detector %q is not compiled in (rebuild with -tags %s)", cfg.Detection.Backend, tag)
		}
		return nil, nil, fmt.Errorf("unknown detector %q (available: %s)", cfg.Detection.Backend, availableDetectors())
	}
	return factory(cfg)
}

func availableDetectors() string {
	names := make([]string, 0, len(detectorBackends))
	for name := range detectorBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.IdentityStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), func() {}, nil
	case "postgres":
		store, err := postgres.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// newService wires detector, store and matcher from the configuration.
// The returned function releases both.
func newService(ctx context.Context) (*auth.Service, func(), error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	det, closeDetector, err := newDetector(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		closeDetector()
		return nil, nil, err
	}

	svc := auth.NewService(store, det, auth.Options{
		DebugDir:  cfg.Recognition.DebugDir,
		Threshold: cfg.Recognition.SimilarityThreshold,
	})
	return svc, func() {
		closeStore()
		closeDetector()
	}, nil
}
