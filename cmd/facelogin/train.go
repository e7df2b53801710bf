package main

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/texture"
	"github.com/MrCodeEU/facelogin/pkg/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the LBPH classifier from <data>/<person>/*.jpg",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>...",
	Short: "Identify faces with the trained LBPH classifier",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecognize,
}

var collectCmd = &cobra.Command{
	Use:   "collect <name> <image>...",
	Short: "Add images to the training set of one person",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCollect,
}

func init() {
	rootCmd.AddCommand(trainCmd, recognizeCmd, collectCmd)

	trainCmd.Flags().String("data", "", "Training data directory (overrides config)")
	trainCmd.Flags().String("model", "", "Model output path (overrides config)")
	trainCmd.Flags().String("labels", "", "Labels output path (overrides config)")
	trainCmd.Flags().Bool("crop-faces", false, "Detect and crop the face in every training image")

	recognizeCmd.Flags().Bool("all", false, "Identify every detected face instead of requiring exactly one")
	recognizeCmd.Flags().String("annotate", "", "Write annotated copies of the images into this directory")
	recognizeCmd.Flags().Float64("threshold", 0, "Maximum accepted distance (overrides config)")

	collectCmd.Flags().Int("count", 0, "Maximum number of images to add (0 = all)")
	collectCmd.Flags().String("data", "", "Training data directory (overrides config)")
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func runTrain(cmd *cobra.Command, args []string) error {
	c := cfg.Classifier
	opts := training.Options{
		DataDir:    stringFlag(cmd, "data", c.DataDir),
		ModelPath:  stringFlag(cmd, "model", c.ModelPath),
		LabelsPath: stringFlag(cmd, "labels", c.LabelsPath),
		Params: texture.Params{
			Radius:    c.Radius,
			Neighbors: c.Neighbors,
			GridX:     c.GridX,
			GridY:     c.GridY,
		},
		FaceSize:  c.FaceSize,
		CropFaces: c.CropFaces,
		Progress:  os.Stderr,
	}
	if crop, _ := cmd.Flags().GetBool("crop-faces"); crop {
		opts.CropFaces = true
	}

	if opts.CropFaces {
		det, closeDetector, err := newDetector(cfg)
		if err != nil {
			return err
		}
		defer closeDetector()
		opts.Detector = det
	}

	summary, err := training.Train(cmd.Context(), opts)
	if err != nil {
		return err
	}

	fmt.Printf("Trained on %d image(s) of %d person(s)", summary.Images, summary.People)
	if summary.Skipped > 0 {
		fmt.Printf(", %d skipped", summary.Skipped)
	}
	fmt.Println()
	fmt.Printf("  Model:  %s\n", summary.ModelPath)
	fmt.Printf("  Labels: %s\n", summary.LabelsPath)
	return nil
}

func runRecognize(cmd *cobra.Command, args []string) error {
	threshold, err := recognizeThreshold(cmd)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	annotateDir, _ := cmd.Flags().GetString("annotate")

	det, closeDetector, err := newDetector(cfg)
	if err != nil {
		return err
	}
	defer closeDetector()

	rec, err := training.LoadRecognizer(cfg.Classifier.ModelPath, cfg.Classifier.LabelsPath, det, threshold)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range args {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if err := recognizeFile(rec, path, all, annotateDir); err != nil {
			logging.WithError(err).WithField("file", path).Warn("Recognition failed")
			fmt.Printf("%s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d image(s) could not be recognized", failed, len(args))
	}
	return nil
}

// recognizeThreshold returns --threshold when it was given, including 0,
// and the configured distance threshold otherwise.
func recognizeThreshold(cmd *cobra.Command) (float64, error) {
	if !cmd.Flags().Changed("threshold") {
		return cfg.Classifier.DistanceThreshold, nil
	}
	t, err := cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return 0, err
	}
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0, fmt.Errorf("invalid --threshold %v: must be a finite, non-negative distance", t)
	}
	return t, nil
}

func recognizeFile(rec *training.Recognizer, path string, all bool, annotateDir string) error {
	img, err := imageutil.Open(path)
	if err != nil {
		return err
	}

	var ids []training.Identity
	if all {
		ids, err = rec.IdentifyAll(img)
	} else {
		var id training.Identity
		id, err = rec.Identify(img)
		ids = []training.Identity{id}
	}
	if err != nil {
		return err
	}

	captions := make([]string, len(ids))
	for i, id := range ids {
		captions[i] = fmt.Sprintf("%s (%.1f)", id.Name, id.Distance)
	}
	if len(ids) == 0 {
		fmt.Printf("%s: no faces\n", path)
	} else {
		fmt.Printf("%s: %s\n", path, strings.Join(captions, ", "))
	}

	if annotateDir == "" {
		return nil
	}

	annotated := img
	for i, id := range ids {
		var c color.Color = imageutil.Red
		if id.Known {
			c = imageutil.Green
		}
		annotated = imageutil.Annotate(annotated, id.Region.Rect(), captions[i], c)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return imageutil.SaveJPEG(annotated, filepath.Join(annotateDir, base+"_recognized.jpg"))
}

func runCollect(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	written, err := training.Collect(training.CollectOptions{
		DataDir: stringFlag(cmd, "data", cfg.Classifier.DataDir),
		Name:    args[0],
		Limit:   count,
	}, args[1:])
	if err != nil {
		return err
	}

	for _, path := range written {
		fmt.Printf("Saved: %s\n", path)
	}
	fmt.Printf("Collected %d image(s) for '%s'\n", len(written), args[0])
	return nil
}
