package io

import (
	"math"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/qcloud"
)

// Columns of a particle table.
const (
	tCol, zCol, yCol, xCol, qCol = 0, 1, 2, 3, 4
)

// ReadParticleTable reads a whitespace-separated text table whose first five
// columns are t, z, y, x, q. Coordinates must be non-negative integers.
func ReadParticleTable(path string) ([]qcloud.Particle, error) {
	cols, err := table.ReadTable(path, []int{tCol, zCol, yCol, xCol, qCol}, nil)
	if err != nil {
		return nil, qcloud.FormatError(path, err, "cannot read particle table")
	}

	ts, zs, ys, xs, qs := cols[0], cols[1], cols[2], cols[3], cols[4]
	ps := make([]qcloud.Particle, len(ts))
	for i := range ps {
		coords := [4]float64{ts[i], zs[i], ys[i], xs[i]}
		for _, c := range coords {
			if c < 0 || c != math.Floor(c) || c > math.MaxInt32 {
				return nil, qcloud.FormatError(path, nil,
					"row %d has the non-integer coordinate %g", i+1, c)
			}
		}

		ps[i] = qcloud.Particle{
			T: int32(ts[i]), Z: int32(zs[i]), Y: int32(ys[i]), X: int32(xs[i]),
			Q: float32(qs[i]),
		}
	}

	return ps, nil
}

// TableHeader builds a container header for particles imported from a
// table. Dimensions are one past the largest coordinate on each axis.
func TableHeader(ps []qcloud.Particle, downsampling int32) qcloud.Header {
	hd := qcloud.Header{Count: int32(len(ps)), DownsamplingFactor: downsampling}
	for _, p := range ps {
		if p.T+1 > hd.TimeDim {
			hd.TimeDim = p.T + 1
		}
		if p.Z+1 > hd.ZDim {
			hd.ZDim = p.Z + 1
		}
		if p.Y+1 > hd.YDim {
			hd.YDim = p.Y + 1
		}
		if p.X+1 > hd.XDim {
			hd.XDim = p.X + 1
		}
	}
	return hd
}
