package training

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/storage"
)

// CollectOptions configures Collect.
type CollectOptions struct {
	DataDir string
	Name    string
	// Limit caps the number of saved images; 0 saves all sources.
	Limit int
}

// Collect copies source images into <DataDir>/<Name>/<Name>_NNN.jpg,
// continuing after the highest existing index. Unreadable sources are
// skipped. It returns the written paths.
func Collect(opts CollectOptions, sources []string) ([]string, error) {
	log := logging.Component("training")

	if err := storage.ValidateUserID(opts.Name); err != nil || filepath.Base(opts.Name) != opts.Name {
		return nil, fmt.Errorf("invalid person name %q", opts.Name)
	}

	dir := filepath.Join(opts.DataDir, opts.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	next, err := nextIndex(dir, opts.Name)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, src := range sources {
		if opts.Limit > 0 && len(written) >= opts.Limit {
			break
		}

		img, err := imageutil.Open(src)
		if err != nil {
			log.WithError(err).WithField("file", src).Warn("Skipping image")
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.jpg", opts.Name, next))
		if err := imageutil.SaveJPEG(img, path); err != nil {
			return written, err
		}
		written = append(written, path)
		next++
	}

	log.WithFields(logging.Fields{
		"name":   opts.Name,
		"saved":  len(written),
		"folder": dir,
	}).Info("Images collected")
	return written, nil
}

func nextIndex(dir, name string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, name+"_*.jpg"))
	if err != nil {
		return 0, err
	}

	next := 0
	for _, m := range matches {
		digits := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), name+"_"), ".jpg")
		if n, err := strconv.Atoi(digits); err == nil && n >= next {
			next = n + 1
		}
	}
	return next, nil
}
