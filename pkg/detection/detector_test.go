package detection

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// stubCascade builds a single-tree, depth-0 pigo cascade that scores every
// window with pred-threshold.
func stubCascade(pred, threshold float32) []byte {
	buf := make([]byte, 8, 24)
	buf = binary.LittleEndian.AppendUint32(buf, 0) // tree depth
	buf = binary.LittleEndian.AppendUint32(buf, 1) // tree count
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(pred))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(threshold))
	return buf
}

func grayImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestResultSingle(t *testing.T) {
	one := Region{X: 1, Y: 2, Width: 3, Height: 4}

	tests := []struct {
		name    string
		result  Result
		want    Region
		wantErr error
	}{
		{"no faces", Result{}, Region{}, ErrNoFaceDetected},
		{"one face", Result{Count: 1, Regions: []Region{one}}, one, nil},
		{"two faces", Result{Count: 2, Regions: []Region{one, one}}, Region{}, ErrMultipleFaces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.result.Single()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Single() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Single() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClampRegion(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		want   Region
		ok     bool
	}{
		{"inside", Region{10, 10, 20, 20}, Region{10, 10, 20, 20}, true},
		{"negative origin", Region{-5, -5, 20, 20}, Region{0, 0, 15, 15}, true},
		{"overflows right and bottom", Region{90, 80, 20, 40}, Region{90, 80, 10, 20}, true},
		{"fully outside", Region{200, 200, 10, 10}, Region{}, false},
		{"zero width", Region{10, 10, 0, 10}, Region{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClampRegion(tt.region, 100, 100)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ClampRegion() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult([]Region{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 500, Y: 500, Width: 10, Height: 10},
		{X: 95, Y: 95, Width: 10, Height: 10},
	}, 100, 100)

	if res.Count != 2 || len(res.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d (%v)", res.Count, res.Regions)
	}
	if res.Regions[1] != (Region{X: 95, Y: 95, Width: 5, Height: 5}) {
		t.Errorf("second region not clamped: %+v", res.Regions[1])
	}
}

func TestRegionRect(t *testing.T) {
	r := Region{X: 5, Y: 6, Width: 7, Height: 8}
	if r.Rect() != image.Rect(5, 6, 12, 14) {
		t.Errorf("Rect() = %v", r.Rect())
	}
}

func TestNewPigoDetector_InvalidCascade(t *testing.T) {
	for _, cascade := range [][]byte{nil, []byte("short"), make([]byte, 10)} {
		if _, err := NewPigoDetector(cascade, DefaultParams()); err == nil {
			t.Errorf("expected error for %d-byte cascade", len(cascade))
		}
	}
}

func TestLoadPigoDetector_MissingFile(t *testing.T) {
	if _, err := LoadPigoDetector(filepath.Join(t.TempDir(), "facefinder"), DefaultParams()); err == nil {
		t.Error("expected error for missing cascade file")
	}
}

func TestPigoDetector_SingleWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	if err := os.WriteFile(path, stubCascade(10, 0), 0644); err != nil {
		t.Fatal(err)
	}

	params := DefaultParams()
	params.MinSize = 98
	d, err := LoadPigoDetector(path, params)
	if err != nil {
		t.Fatalf("LoadPigoDetector failed: %v", err)
	}
	if d.Name() != "pigo" {
		t.Errorf("Name() = %s", d.Name())
	}

	res := d.Detect(grayImage(100, 100))
	region, err := res.Single()
	if err != nil {
		t.Fatalf("expected one face, got %v (%+v)", err, res)
	}
	if region != (Region{X: 1, Y: 1, Width: 98, Height: 98}) {
		t.Errorf("unexpected region %+v", region)
	}
}

func TestPigoDetector_OffsetImage(t *testing.T) {
	params := DefaultParams()
	params.MinSize = 98
	d, err := NewPigoDetector(stubCascade(10, 0), params)
	if err != nil {
		t.Fatal(err)
	}

	big := grayImage(200, 200).(*image.NRGBA)
	sub := big.SubImage(image.Rect(50, 50, 150, 150))

	res := d.Detect(sub)
	if res.Count != 1 {
		t.Fatalf("expected one face, got %d", res.Count)
	}
	if res.Regions[0].X != 1 || res.Regions[0].Y != 1 {
		t.Errorf("region should be relative to the image origin: %+v", res.Regions[0])
	}
}

func TestPigoDetector_Filters(t *testing.T) {
	tests := []struct {
		name    string
		cascade []byte
		modify  func(*Params)
		img     image.Image
	}{
		{
			name:    "score below cascade threshold",
			cascade: stubCascade(1, 2),
			modify:  func(p *Params) { p.MinSize = 98 },
			img:     grayImage(100, 100),
		},
		{
			name:    "cluster quality below minimum",
			cascade: stubCascade(10, 0),
			modify:  func(p *Params) { p.MinSize = 98; p.MinQuality = 20 },
			img:     grayImage(100, 100),
		},
		{
			name:    "image smaller than minimum face",
			cascade: stubCascade(10, 0),
			modify:  func(p *Params) {},
			img:     grayImage(80, 80),
		},
		{
			name:    "empty image",
			cascade: stubCascade(10, 0),
			modify:  func(p *Params) {},
			img:     image.NewNRGBA(image.Rect(0, 0, 0, 0)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.modify(&params)
			d, err := NewPigoDetector(tt.cascade, params)
			if err != nil {
				t.Fatal(err)
			}
			if res := d.Detect(tt.img); res.Count != 0 {
				t.Errorf("expected no faces, got %d", res.Count)
			}
		})
	}
}

func TestPigoDetector_FailsClosed(t *testing.T) {
	// An empty cascade unpacks but panics as soon as a window is classified.
	empty := make([]byte, 16)

	params := DefaultParams()
	params.MinSize = 20
	d, err := NewPigoDetector(empty, params)
	if err != nil {
		t.Fatalf("NewPigoDetector failed: %v", err)
	}

	res := d.Detect(grayImage(64, 64))
	if res.Count != 0 || len(res.Regions) != 0 {
		t.Errorf("expected zero faces after internal failure, got %+v", res)
	}
	if _, err := res.Single(); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}
