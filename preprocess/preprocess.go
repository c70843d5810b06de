/*package preprocess turns a flattened 4-D scalar field into a particle
container.

The traversal is time-major, then z, y, x over the downsampled grid, and the
output preserves that order. Playback relies on it: particles belonging to
one timestep form a contiguous run.
*/
package preprocess

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
)

// missingFloor catches fill values which are not exactly the configured
// marker.
const missingFloor = -999000

// Params controls the filter.
type Params struct {
	StepSize                   int
	MinThreshold, MaxThreshold float32
	MissingValue               float32
	ExcludeOrigin              bool
	MaxParticles               int
	Dims                       qcloud.Dims
}

// DefaultParams returns the parameters used for the Quest builds.
func DefaultParams() Params {
	return Params{
		StepSize:      8,
		MinThreshold:  0.006,
		MaxThreshold:  0.00975,
		MissingValue:  -999999,
		ExcludeOrigin: true,
		MaxParticles:  500000,
		Dims:          qcloud.DefaultDims,
	}
}

// Validate returns an error describing the first invalid parameter.
func (p *Params) Validate() error {
	switch {
	case p.StepSize < 1:
		return fmt.Errorf("Step size must be at least 1, but is %d.", p.StepSize)
	case p.MinThreshold > p.MaxThreshold:
		return fmt.Errorf("Min threshold %g is larger than max threshold %g.",
			p.MinThreshold, p.MaxThreshold)
	case p.MaxParticles < 0:
		return fmt.Errorf("Max particles may not be negative.")
	case !p.Dims.Valid():
		return fmt.Errorf("Invalid dimensions %v.", p.Dims)
	}
	return nil
}

// Cell is a downsampled grid location.
type Cell struct {
	T, Z, Y, X int
}

// Stats summarizes a filter pass.
type Stats struct {
	Checked, Missing, Valid, OriginExcluded, Passed, Kept int
	MinValid, MaxValid                                   float32

	// PerTimestep[t] is the number of particles kept at timestep t.
	PerTimestep []int

	// Truncated is set when MaxParticles was reached. TruncatedAt is the
	// first cell which passed the filter but was dropped.
	Truncated   bool
	TruncatedAt Cell
}

// Uncovered returns the timesteps which kept no particles. After truncation
// this includes every timestep past TruncatedAt.T.
func (s *Stats) Uncovered() []int {
	out := []int{}
	for t, n := range s.PerTimestep {
		if n == 0 {
			out = append(out, t)
		}
	}
	return out
}

// approximately mirrors Unity's Mathf.Approximately.
func approximately(a, b float32) bool {
	tol := math32.Max(1e-6*math32.Max(math32.Abs(a), math32.Abs(b)),
		math32.SmallestNonzeroFloat32*8)
	return math32.Abs(b-a) < tol
}

// Filter downsamples flat and keeps the cells which pass the filter. The
// returned header describes the downsampled grid. log may be nil.
func Filter(
	flat []float32, p Params, log *zap.Logger,
) ([]qcloud.Particle, qcloud.Header, Stats) {
	if log == nil {
		log = zap.NewNop()
	}

	d, step := p.Dims, p.StepSize
	stepZ, stepY, stepX := d.Z/step, d.Y/step, d.X/step

	if len(flat) != d.Len() {
		log.Warn("Source length does not match configured dimensions.",
			zap.Int("length", len(flat)), zap.Int("expected", d.Len()),
			zap.Any("dims", d))
	}
	log.Info("Filtering volume.",
		zap.Any("dims", d), zap.Int("step", step),
		zap.Ints("downsampled", []int{stepZ, stepY, stepX}),
		zap.Float32("min", p.MinThreshold), zap.Float32("max", p.MaxThreshold),
		zap.Float32("missing", p.MissingValue),
		zap.Bool("excludeOrigin", p.ExcludeOrigin))

	ps := []qcloud.Particle{}
	st := Stats{
		MinValid:    math32.MaxFloat32,
		MaxValid:    -math32.MaxFloat32,
		PerTimestep: make([]int, d.T),
	}

	yx := d.Y * d.X
loop:
	for t := 0; t < d.T; t++ {
		for zz := 0; zz < stepZ; zz++ {
			for yy := 0; yy < stepY; yy++ {
				for xx := 0; xx < stepX; xx++ {
					idx := (t*d.Z+zz*step)*yx + (yy*step)*d.X + xx*step
					if idx >= len(flat) {
						continue
					}

					st.Checked++
					v := flat[idx]
					if math32.IsNaN(v) || approximately(v, p.MissingValue) ||
						v < missingFloor {
						st.Missing++
						continue
					}

					st.Valid++
					if v < st.MinValid {
						st.MinValid = v
					}
					if v > st.MaxValid {
						st.MaxValid = v
					}

					if p.ExcludeOrigin && xx == 0 && yy == 0 && zz == 0 {
						st.OriginExcluded++
						continue
					}

					if !(v >= p.MinThreshold && v <= p.MaxThreshold) {
						continue
					}

					st.Passed++
					if len(ps) >= p.MaxParticles {
						st.Truncated = true
						st.TruncatedAt = Cell{t, zz, yy, xx}
						log.Warn("Reached particle limit, stopping early.",
							zap.String("limit", humanize.Comma(int64(p.MaxParticles))),
							zap.Any("at", st.TruncatedAt))
						break loop
					}

					ps = append(ps, qcloud.Particle{
						T: int32(t), Z: int32(zz), Y: int32(yy), X: int32(xx),
						Q: v,
					})
					st.PerTimestep[t]++
				}
			}
		}
	}

	st.Kept = len(ps)
	if st.Valid == 0 {
		st.MinValid, st.MaxValid = 0, 0
	}

	hd := qcloud.Header{
		Count:              int32(len(ps)),
		DownsamplingFactor: int32(step),
		TimeDim:            int32(d.T),
		ZDim:               int32(stepZ),
		YDim:               int32(stepY),
		XDim:               int32(stepX),
	}
	return ps, hd, st
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// Summary returns printable lines describing the filter pass.
func (s *Stats) Summary(p Params) []string {
	lines := []string{
		fmt.Sprintf("Total checked: %s", humanize.Comma(int64(s.Checked))),
		fmt.Sprintf("Missing data markers: %s (%.2f%%)",
			humanize.Comma(int64(s.Missing)), percent(s.Missing, s.Checked)),
		fmt.Sprintf("Valid values: %s (%.2f%%)",
			humanize.Comma(int64(s.Valid)), percent(s.Valid, s.Checked)),
		fmt.Sprintf("Value range: min=%.6f, max=%.6f", s.MinValid, s.MaxValid),
		fmt.Sprintf("Origin points excluded: %s",
			humanize.Comma(int64(s.OriginExcluded))),
		fmt.Sprintf("Threshold filter [%.6f to %.6f]: %s passed (%.2f%% of valid)",
			p.MinThreshold, p.MaxThreshold, humanize.Comma(int64(s.Passed)),
			percent(s.Passed, s.Valid)),
		fmt.Sprintf("Final particles: %s", humanize.Comma(int64(s.Kept))),
	}

	if s.Truncated {
		lines = append(lines, fmt.Sprintf(
			"Limited to %s particles: stopped at t=%d, z=%d, y=%d, x=%d",
			humanize.Comma(int64(p.MaxParticles)),
			s.TruncatedAt.T, s.TruncatedAt.Z, s.TruncatedAt.Y, s.TruncatedAt.X,
		))
	}
	if un := s.Uncovered(); len(un) > 0 {
		lines = append(lines, fmt.Sprintf("Timesteps with no particles: %v", un))
	}
	return lines
}
