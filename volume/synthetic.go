package volume

import (
	"math/rand"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/phil-mansfield/qcloud"
)

const (
	// DefaultPeak is the plume's peak value. It sits just above the default
	// threshold window so that the window picks out a shell around the core.
	DefaultPeak = 0.01
	// DefaultMissing matches the NetCDF fill value used by the dispersion
	// runs.
	DefaultMissing = -999999
)

// Synthetic generates a deterministic plume which drifts along x and spreads
// as t increases. The top z slab is filled with the missing-value marker,
// which stands in for the terrain mask of the real runs.
type Synthetic struct {
	Dims    qcloud.Dims
	Seed    int64
	Peak    float32 // Zero means DefaultPeak
	Missing float32 // Zero means DefaultMissing
}

// plume is the per-timestep shape of the field.
type plume struct {
	cx, cy, cz, sigma float32
}

// Read returns the generated field. name only needs to be non-empty.
func (s *Synthetic) Read(name string) ([]float32, error) {
	if name == "" {
		return nil, qcloud.FormatError("", nil, "empty dataset name")
	} else if !s.Dims.Valid() {
		return nil, qcloud.FormatError("", nil,
			"synthetic volume has invalid dimensions %v", s.Dims)
	}

	peak, missing := s.Peak, s.Missing
	if peak == 0 {
		peak = DefaultPeak
	}
	if missing == 0 {
		missing = DefaultMissing
	}

	plumes := s.plumes()
	vals := make([]float32, s.Dims.Len())
	slab := s.Dims.Z * s.Dims.Y * s.Dims.X

	g := &errgroup.Group{}
	g.SetLimit(runtime.NumCPU())
	for t := 0; t < s.Dims.T; t++ {
		t := t
		g.Go(func() error {
			s.fill(vals[t*slab:(t+1)*slab], plumes[t], peak, missing)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vals, nil
}

// plumes draws the plume parameters for every timestep. This happens
// serially so that the result does not depend on scheduling.
func (s *Synthetic) plumes() []plume {
	r := rand.New(rand.NewSource(s.Seed))
	d := s.Dims

	ps := make([]plume, d.T)
	x0 := float32(d.X) * (0.2 + 0.2*r.Float32())
	y0 := float32(d.Y) * (0.3 + 0.4*r.Float32())
	drift := float32(d.X) * 0.5 / float32(d.T)
	for t := range ps {
		ps[t] = plume{
			cx: x0 + drift*float32(t),
			cy: y0 + float32(d.Y)*0.02*(r.Float32()-0.5),
			cz: float32(d.Z) * 0.3,
			sigma: math32.Max(1, float32(d.X)*(0.05+0.01*float32(t))),
		}
	}
	return ps
}

func (s *Synthetic) fill(out []float32, p plume, peak, missing float32) {
	d := s.Dims
	idx := 0
	inv := 1 / (2 * p.sigma * p.sigma)
	for z := 0; z < d.Z; z++ {
		dz := float32(z) - p.cz
		for y := 0; y < d.Y; y++ {
			dy := float32(y) - p.cy
			for x := 0; x < d.X; x++ {
				if d.Z > 1 && z == d.Z-1 {
					out[idx] = missing
				} else {
					dx := float32(x) - p.cx
					r2 := dx*dx + dy*dy + 4*dz*dz
					out[idx] = peak * math32.Exp(-r2*inv)
				}
				idx++
			}
		}
	}
}
