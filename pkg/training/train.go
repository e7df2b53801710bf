package training

import (
	"context"
	"fmt"
	"os"

	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/texture"
)

// Summary describes a finished training run.
type Summary struct {
	People     int
	Images     int
	Skipped    int
	ModelPath  string
	LabelsPath string
}

// Train loads the dataset, trains an LBPH model and writes the model and
// label map. Nothing is written when the dataset has no usable image.
func Train(ctx context.Context, opts Options) (*Summary, error) {
	log := logging.Component("training")

	if opts.FaceSize <= 0 {
		opts.FaceSize = DefaultFaceSize
	}
	model, err := texture.NewLBPH(opts.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid LBPH parameters: %w", err)
	}

	ds, err := LoadDataset(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("%w in %s (expected <dir>/<person>/*.jpg)", ErrNoTrainingData, opts.DataDir)
	}

	bar := newBar(opts.Progress, len(ds.Samples), "Training")
	for _, s := range ds.Samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := model.Update([]texture.Sample{s}); err != nil {
			return nil, fmt.Errorf("training failed: %w", err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := texture.SaveModel(model, opts.FaceSize, opts.ModelPath); err != nil {
		return nil, err
	}
	if err := ds.Labels.Save(opts.LabelsPath); err != nil {
		// A model without its labels is unusable.
		_ = os.Remove(opts.ModelPath)
		return nil, err
	}

	summary := &Summary{
		People:     ds.Labels.Len(),
		Images:     len(ds.Samples),
		Skipped:    ds.Skipped,
		ModelPath:  opts.ModelPath,
		LabelsPath: opts.LabelsPath,
	}
	log.WithFields(logging.Fields{
		"people": summary.People,
		"images": summary.Images,
		"model":  summary.ModelPath,
		"labels": summary.LabelsPath,
	}).Info("Model trained")
	return summary, nil
}
