package main

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facelogin/pkg/logging"
)

type modelFile struct {
	Backend string
	Path    string
	URL     string
}

var downloadCmd = &cobra.Command{
	Use:   "download-models [backend...]",
	Short: "Download detector models (pigo, haar, dlib)",
	RunE:  runDownloadModels,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().Bool("force", false, "Download even if the file already exists")
}

func modelFiles() []modelFile {
	dir := cfg.Detection.ModelPath
	return []modelFile{
		{
			Backend: "pigo",
			Path:    cfg.Detection.CascadePath,
			URL:     "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder",
		},
		{
			Backend: "haar",
			Path:    haarCascadePath(cfg),
			URL:     "https://raw.githubusercontent.com/opencv/opencv/4.x/data/haarcascades/haarcascade_frontalface_default.xml",
		},
		{
			Backend: "dlib",
			Path:    filepath.Join(dir, "shape_predictor_5_face_landmarks.dat"),
			URL:     "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
		},
		{
			Backend: "dlib",
			Path:    filepath.Join(dir, "dlib_face_recognition_resnet_model_v1.dat"),
			URL:     "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
		},
		{
			Backend: "dlib",
			Path:    filepath.Join(dir, "mmod_human_face_detector.dat"),
			URL:     "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
		},
	}
}

func runDownloadModels(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	wanted := map[string]bool{cfg.Detection.Backend: true}
	if len(args) > 0 {
		wanted = make(map[string]bool, len(args))
		for _, a := range args {
			wanted[a] = true
		}
	}

	downloaded := 0
	for _, model := range modelFiles() {
		if !wanted[model.Backend] {
			continue
		}
		if _, err := os.Stat(model.Path); err == nil && !force {
			logging.Infof("Model %s already exists, skipping", model.Path)
			continue
		}

		logging.Infof("Downloading %s...", filepath.Base(model.Path))
		if err := downloadFile(cmd, model.URL, model.Path); err != nil {
			return fmt.Errorf("failed to download %s: %w", filepath.Base(model.Path), err)
		}
		downloaded++
	}

	logging.Infof("%d model file(s) downloaded", downloaded)
	return nil
}

// downloadFile fetches url into path, decompressing .bz2 payloads. The file
// only appears at path once the download completed.
func downloadFile(cmd *cobra.Command, url, path string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{
		Timeout: 10 * time.Minute,
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	out, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	tmpPath := out.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(filepath.Base(path)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	var src io.Reader = io.TeeReader(resp.Body, bar)
	if strings.HasSuffix(url, ".bz2") {
		src = bzip2.NewReader(src)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	_ = bar.Finish()

	return os.Rename(tmpPath, path)
}
