//go:build dlib

package main

import (
	"github.com/MrCodeEU/facelogin/pkg/config"
	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/detection/dlib"
)

func init() {
	detectorBackends["dlib"] = func(cfg *config.Config) (detection.Detector, func(), error) {
		d, err := dlib.NewDetector(cfg.Detection.ModelPath, detectorParams(cfg))
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	}
}
