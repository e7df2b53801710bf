package recognition

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/MrCodeEU/facelogin/pkg/detection"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name          string
		region        detection.Region
		width, height int
		want          FeatureVector
	}{
		{
			name:   "centered square",
			region: detection.Region{X: 100, Y: 50, Width: 200, Height: 200},
			width:  400, height: 300,
			want: FeatureVector{0.5, 0.5, 40000.0 / 120000.0, 1.0},
		},
		{
			name:   "top-left wide face",
			region: detection.Region{X: 0, Y: 0, Width: 100, Height: 50},
			width:  200, height: 200,
			want: FeatureVector{0.25, 0.125, 0.125, 2.0},
		},
		{
			name:   "full frame",
			region: detection.Region{X: 0, Y: 0, Width: 640, Height: 480},
			width:  640, height: 480,
			want: FeatureVector{0.5, 0.5, 1.0, 640.0 / 480.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.region, tt.width, tt.height)
			for i := range got {
				if !approxEqual(got[i], tt.want[i]) {
					t.Errorf("component %d = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtract_Deterministic(t *testing.T) {
	region := detection.Region{X: 37, Y: 91, Width: 123, Height: 141}

	first := Extract(region, 640, 480)
	for i := 0; i < 100; i++ {
		if got := Extract(region, 640, 480); got != first {
			t.Fatalf("Extract not deterministic: %v != %v", got, first)
		}
	}
}

func TestExtract_Ranges(t *testing.T) {
	for x := 0; x < 300; x += 37 {
		for size := 1; size <= 100; size += 33 {
			v := Extract(detection.Region{X: x, Y: x / 2, Width: size, Height: size + 10}, 400, 300)
			for i := 0; i < 3; i++ {
				if v[i] < 0 || v[i] > 1 {
					t.Errorf("component %d out of [0,1]: %f", i, v[i])
				}
			}
			if v[3] <= 0 {
				t.Errorf("aspect ratio must be positive, got %f", v[3])
			}
		}
	}
}

func TestExtract_ZeroDimensions(t *testing.T) {
	region := detection.Region{X: 1, Y: 1, Width: 10, Height: 10}

	if v := Extract(region, 0, 100); v != (FeatureVector{}) {
		t.Errorf("expected zero vector for zero width, got %v", v)
	}
	if v := Extract(region, 100, 0); v != (FeatureVector{}) {
		t.Errorf("expected zero vector for zero height, got %v", v)
	}
}

func TestFeatureVector_JSON(t *testing.T) {
	var v FeatureVector
	if err := json.Unmarshal([]byte(`[0.5, 0.25, 0.1, 1.2]`), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v != (FeatureVector{0.5, 0.25, 0.1, 1.2}) {
		t.Errorf("unexpected vector %v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[0.5,0.25,0.1,1.2]" {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestFeatureVector_JSONWrongLength(t *testing.T) {
	for _, input := range []string{`[]`, `[1,2,3]`, `[1,2,3,4,5]`, `{"x":1}`, `"abc"`} {
		var v FeatureVector
		if err := json.Unmarshal([]byte(input), &v); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}
