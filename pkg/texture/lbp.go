package texture

import (
	"image"
	"math"
)

// float32 machine epsilon; interpolated samples this close to the center count as "not darker".
const lbpEpsilon = 1.1920929e-07

// histogramEpsilon guards the chi-square denominator.
const histogramEpsilon = 2.220446049250313e-16

// ExtendedLBP computes circular local binary patterns with bilinear
// interpolation. The result covers the interior of src, shrunk by radius on
// every side, and is returned row-major with its width and height.
func ExtendedLBP(src *image.Gray, radius, neighbors int) (codes []int, width, height int) {
	bounds := src.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	width, height = cols-2*radius, rows-2*radius
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}

	base := src.PixOffset(bounds.Min.X, bounds.Min.Y)
	at := func(y, x int) float64 {
		return float64(src.Pix[base+y*src.Stride+x])
	}

	codes = make([]int, width*height)
	for n := 0; n < neighbors; n++ {
		angle := 2.0 * math.Pi * float64(n) / float64(neighbors)
		x := float64(radius) * math.Cos(angle)
		y := -float64(radius) * math.Sin(angle)

		fx, fy := int(math.Floor(x)), int(math.Floor(y))
		cx, cy := int(math.Ceil(x)), int(math.Ceil(y))

		tx := x - float64(fx)
		ty := y - float64(fy)
		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for i := radius; i < rows-radius; i++ {
			for j := radius; j < cols-radius; j++ {
				t := w1*at(i+fy, j+fx) + w2*at(i+fy, j+cx) + w3*at(i+cy, j+fx) + w4*at(i+cy, j+cx)
				center := at(i, j)
				if t > center || math.Abs(t-center) < lbpEpsilon {
					codes[(i-radius)*width+(j-radius)] |= 1 << n
				}
			}
		}
	}

	return codes, width, height
}

// SpatialHistogram splits an LBP code image into a gridX×gridY grid and
// concatenates one histogram of 2^neighbors bins per cell, each normalized by
// the cell's pixel count. Pixels beyond the last full cell are ignored.
func SpatialHistogram(codes []int, width, height, neighbors, gridX, gridY int) []float64 {
	bins := 1 << neighbors
	hist := make([]float64, gridX*gridY*bins)

	cellW, cellH := width/gridX, height/gridY
	if cellW == 0 || cellH == 0 {
		return hist
	}
	total := float64(cellW * cellH)

	for gy := 0; gy < gridY; gy++ {
		for gx := 0; gx < gridX; gx++ {
			cell := hist[(gy*gridX+gx)*bins : (gy*gridX+gx+1)*bins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := codes[y*width : (y+1)*width]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					cell[row[x]]++
				}
			}
			for b := range cell {
				cell[b] /= total
			}
		}
	}

	return hist
}

// ChiSquareDistance is the symmetric chi-square distance
// 2·Σ (a−b)² / (a+b), skipping bins where both histograms are empty.
func ChiSquareDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float64
	for i := 0; i < n; i++ {
		denom := a[i] + b[i]
		if math.Abs(denom) > histogramEpsilon {
			diff := a[i] - b[i]
			sum += diff * diff / denom
		}
	}
	return 2 * sum
}
