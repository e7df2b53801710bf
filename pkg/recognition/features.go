// Package recognition implements the geometric face descriptor and matcher
// used by the live authentication path.
package recognition

import (
	"encoding/json"
	"fmt"

	"github.com/MrCodeEU/facelogin/pkg/detection"
)

// FeatureVectorSize is the number of components in a FeatureVector.
const FeatureVectorSize = 4

// FeatureVector is [center_x_norm, center_y_norm, area_norm, aspect_ratio].
type FeatureVector [FeatureVectorSize]float64

// UnmarshalJSON rejects arrays that do not hold exactly four numbers.
func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("invalid feature vector: %w", err)
	}
	if len(values) != FeatureVectorSize {
		return fmt.Errorf("invalid feature vector: expected %d components, got %d", FeatureVectorSize, len(values))
	}
	copy(v[:], values)
	return nil
}

// Extract derives the feature vector of region inside a width×height image.
// Zero image dimensions yield the zero vector.
func Extract(region detection.Region, width, height int) FeatureVector {
	if width <= 0 || height <= 0 || region.Height <= 0 {
		return FeatureVector{}
	}

	w, h := float64(width), float64(height)
	rw, rh := float64(region.Width), float64(region.Height)

	return FeatureVector{
		(float64(region.X) + rw/2) / w,
		(float64(region.Y) + rh/2) / h,
		(rw * rh) / (w * h),
		rw / rh,
	}
}
