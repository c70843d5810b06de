package playback

import (
	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/loader"
)

// Index maps timesteps to the particles which belong to them. Time-major
// buffers, which is everything preprocessing writes, are split into
// contiguous views. Anything else is gathered into per-timestep copies.
//
// Only timesteps which hold particles take up space, so the range of
// timesteps costs nothing no matter how large it is.
type Index struct {
	frames map[int]*loader.Buffer
	max    int
	sorted bool
}

// emptyFrame is shared by every timestep without particles.
var emptyFrame = loader.ViewOf(nil)

// NewIndex builds an Index over buf. The header's TimeDim extends the range
// of timesteps past the last one that has particles. Particles with a
// negative timestep are never shown.
func NewIndex(buf *loader.Buffer, hd qcloud.Header) *Index {
	ps := buf.Particles()

	max := int(hd.TimeDim) - 1
	sorted := true
	for i := range ps {
		if int(ps[i].T) > max {
			max = int(ps[i].T)
		}
		if i > 0 && ps[i].T < ps[i-1].T {
			sorted = false
		}
	}
	if max < 0 {
		max = 0
	}

	idx := &Index{frames: map[int]*loader.Buffer{}, max: max, sorted: sorted}
	if sorted {
		start := 0
		for start < len(ps) {
			end := start
			for end < len(ps) && ps[end].T == ps[start].T {
				end++
			}
			if t := ps[start].T; t >= 0 {
				idx.frames[int(t)] = buf.Slice(start, end)
			}
			start = end
		}
	} else {
		gathered := map[int][]qcloud.Particle{}
		for _, p := range ps {
			if p.T >= 0 {
				gathered[int(p.T)] = append(gathered[int(p.T)], p)
			}
		}
		for t, g := range gathered {
			idx.frames[t] = loader.ViewOf(g)
		}
	}
	return idx
}

// MaxTimestep returns the largest timestep the index covers.
func (idx *Index) MaxTimestep() int { return idx.max }

// Frame returns the particles at step. Steps without particles, including
// those outside the index, are empty.
func (idx *Index) Frame(step int) *loader.Buffer {
	if f, ok := idx.frames[step]; ok {
		return f
	}
	return emptyFrame
}

// Contiguous is true if frames are views into the original buffer.
func (idx *Index) Contiguous() bool { return idx.sorted }
