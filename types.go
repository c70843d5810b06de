package qcloud

const (
	// HeaderSize is the size in bytes of an encoded Header.
	HeaderSize = 6 * 4
	// ParticleSize is the size in bytes of an encoded Particle.
	ParticleSize = 4*4 + 4
)

// DefaultDims is the shape of the dispersion runs the viewer was built
// around. It is configuration, not something read out of the source file.
var DefaultDims = Dims{T: 11, Z: 41, Y: 412, X: 412}

// Particle is a single retained grid cell. T is the timestep index, Z, Y, X
// are downsampled grid coordinates and Q is the scalar value at that cell.
//
// The field order is also the encoding order.
type Particle struct {
	T, Z, Y, X int32
	Q          float32
}

// Header describes a particle container. The dimensions are those of the
// downsampled grid, except TimeDim, which is never downsampled.
type Header struct {
	Count              int32 // Number of particles following the header
	DownsamplingFactor int32 // Spatial stride used during preprocessing
	TimeDim            int32
	ZDim, YDim, XDim   int32
}

// Dims is the shape of a 4-D source volume stored in t, z, y, x order.
type Dims struct {
	T, Z, Y, X int
}

// Len returns the number of elements in a volume with these dimensions.
func (d Dims) Len() int { return d.T * d.Z * d.Y * d.X }

// Index returns the flat row-major index of the given cell.
func (d Dims) Index(t, z, y, x int) int {
	return ((t*d.Z+z)*d.Y+y)*d.X + x
}

// Valid returns true if every dimension is positive.
func (d Dims) Valid() bool {
	return d.T > 0 && d.Z > 0 && d.Y > 0 && d.X > 0
}

// Bounds are the per-axis coordinate ranges and the scalar range of a
// particle set.
type Bounds struct {
	MinX, MaxX int32
	MinY, MaxY int32
	MinZ, MaxZ int32
	MinQ, MaxQ float32
}

// BoundsOf returns the bounds of ps. The zero Bounds is returned for an
// empty slice.
func BoundsOf(ps []Particle) Bounds {
	if len(ps) == 0 {
		return Bounds{}
	}

	b := Bounds{
		ps[0].X, ps[0].X, ps[0].Y, ps[0].Y, ps[0].Z, ps[0].Z,
		ps[0].Q, ps[0].Q,
	}
	for _, p := range ps[1:] {
		b.MinX, b.MaxX = minMax(b.MinX, b.MaxX, p.X)
		b.MinY, b.MaxY = minMax(b.MinY, b.MaxY, p.Y)
		b.MinZ, b.MaxZ = minMax(b.MinZ, b.MaxZ, p.Z)
		if p.Q < b.MinQ {
			b.MinQ = p.Q
		} else if p.Q > b.MaxQ {
			b.MaxQ = p.Q
		}
	}
	return b
}

// minMax returns the minimum and maximum of (min, max, x), given min <= max.
func minMax(min, max, x int32) (outMin, outMax int32) {
	if x > max {
		return min, x
	} else if x < min {
		return x, max
	}
	return min, max
}
