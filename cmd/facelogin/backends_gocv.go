//go:build gocv

package main

import (
	"github.com/MrCodeEU/facelogin/pkg/config"
	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/detection/haar"
)

func init() {
	detectorBackends["haar"] = func(cfg *config.Config) (detection.Detector, func(), error) {
		d, err := haar.NewDetector(haarCascadePath(cfg), detectorParams(cfg))
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	}
}
