package texture

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// modelFile is the on-disk form of a trained LBPH model.
type modelFile struct {
	Format     string      `yaml:"format"`
	Radius     int         `yaml:"radius"`
	Neighbors  int         `yaml:"neighbors"`
	GridX      int         `yaml:"grid_x"`
	GridY      int         `yaml:"grid_y"`
	FaceSize   int         `yaml:"face_size"`
	Labels     []int       `yaml:"labels,flow"`
	Histograms [][]float64 `yaml:"histograms,flow"`
}

const modelFormat = "facelogin-lbph-v1"

// SaveModel writes m as YAML. faceSize records the canonical crop size used in training.
func SaveModel(m *LBPH, faceSize int, path string) error {
	doc := modelFile{
		Format:     modelFormat,
		Radius:     m.params.Radius,
		Neighbors:  m.params.Neighbors,
		GridX:      m.params.GridX,
		GridY:      m.params.GridY,
		FaceSize:   faceSize,
		Labels:     m.labels,
		Histograms: m.histograms,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// LoadModel reads a model written by SaveModel and returns it with its face size.
func LoadModel(path string) (*LBPH, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read model: %w", err)
	}

	var doc modelFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if doc.Format != modelFormat {
		return nil, 0, fmt.Errorf("unsupported model format %q in %s", doc.Format, path)
	}

	m, err := NewLBPH(Params{Radius: doc.Radius, Neighbors: doc.Neighbors, GridX: doc.GridX, GridY: doc.GridY})
	if err != nil {
		return nil, 0, fmt.Errorf("invalid model %s: %w", path, err)
	}
	if len(doc.Labels) != len(doc.Histograms) || len(doc.Labels) == 0 {
		return nil, 0, fmt.Errorf("invalid model %s: %d labels for %d histograms", path, len(doc.Labels), len(doc.Histograms))
	}
	want := doc.GridX * doc.GridY * (1 << doc.Neighbors)
	for i, h := range doc.Histograms {
		if len(h) != want {
			return nil, 0, fmt.Errorf("invalid model %s: histogram %d has %d bins, want %d", path, i, len(h), want)
		}
	}
	if doc.FaceSize <= 2*doc.Radius {
		return nil, 0, fmt.Errorf("invalid model %s: face size %d", path, doc.FaceSize)
	}

	m.labels = doc.Labels
	m.histograms = doc.Histograms
	return m, doc.FaceSize, nil
}
