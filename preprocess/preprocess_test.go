package preprocess

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/volume"
)

func smallParams() Params {
	p := DefaultParams()
	p.StepSize = 1
	p.Dims = qcloud.Dims{T: 2, Z: 2, Y: 2, X: 2}
	p.MaxParticles = 100
	return p
}

func smallVolume() []float32 {
	return []float32{
		// t = 0, z = 0
		0.008, -999999, 0.02, 0.00975,
		// t = 0, z = 1
		0.008, 0.008, 0.008, 0.008,
		// t = 1, z = 0
		0.008, -1e7, 0.006, 0.001,
		// t = 1, z = 1
		0.008, 0.008, 0.008, 0.008,
	}
}

func TestFilterCounts(t *testing.T) {
	ps, hd, st := Filter(smallVolume(), smallParams(), nil)

	assert.Equal(t, 16, st.Checked)
	assert.Equal(t, 2, st.Missing)
	assert.Equal(t, 14, st.Valid)
	assert.Equal(t, 2, st.OriginExcluded)
	assert.Equal(t, 10, st.Passed)
	assert.Equal(t, 10, st.Kept)
	assert.Equal(t, []int{5, 5}, st.PerTimestep)
	assert.Empty(t, st.Uncovered())
	assert.False(t, st.Truncated)
	assert.Equal(t, float32(0.001), st.MinValid)
	assert.Equal(t, float32(0.02), st.MaxValid)

	assert.Equal(t, qcloud.Header{
		Count: 10, DownsamplingFactor: 1, TimeDim: 2, ZDim: 2, YDim: 2, XDim: 2,
	}, hd)

	require.Len(t, ps, 10)
	assert.Equal(t, qcloud.Particle{T: 0, Z: 0, Y: 1, X: 1, Q: 0.00975}, ps[0])
	assert.Equal(t, qcloud.Particle{T: 1, Z: 0, Y: 1, X: 0, Q: 0.006}, ps[5])
}

func TestFilterTruncation(t *testing.T) {
	p := smallParams()
	p.MaxParticles = 3
	ps, hd, st := Filter(smallVolume(), p, nil)

	require.Len(t, ps, 3)
	assert.Equal(t, int32(3), hd.Count)
	assert.True(t, st.Truncated)
	assert.Equal(t, Cell{T: 0, Z: 1, Y: 1, X: 0}, st.TruncatedAt)
	assert.Equal(t, 4, st.Passed)
	assert.Equal(t, 7, st.Checked)
	assert.Equal(t, []int{3, 0}, st.PerTimestep)
	assert.Equal(t, []int{1}, st.Uncovered())

	// The kept particles are a prefix of the untruncated run.
	full, _, _ := Filter(smallVolume(), smallParams(), nil)
	if diff := cmp.Diff(full[:3], ps); diff != "" {
		t.Errorf("truncated particles differ (-want +got):\n%s", diff)
	}

	p.MaxParticles = 0
	ps, _, st = Filter(smallVolume(), p, nil)
	assert.Empty(t, ps)
	assert.True(t, st.Truncated)
}

func TestFilterShortInput(t *testing.T) {
	p := smallParams()
	p.Dims = qcloud.Dims{T: 1, Z: 1, Y: 1, X: 4}
	p.ExcludeOrigin = false

	ps, _, st := Filter([]float32{0.007, 0.008}, p, nil)
	assert.Equal(t, 2, st.Checked)
	assert.Len(t, ps, 2)
}

func TestFilterNaN(t *testing.T) {
	p := smallParams()
	p.Dims = qcloud.Dims{T: 1, Z: 1, Y: 1, X: 3}
	p.ExcludeOrigin = false
	nan := float32(math.NaN())

	ps, _, st := Filter([]float32{0.007, nan, 0.5}, p, nil)
	assert.Equal(t, 3, st.Checked)
	assert.Equal(t, 1, st.Missing)
	assert.Equal(t, 2, st.Valid)
	assert.Equal(t, 1, st.Passed)
	assert.Equal(t, float32(0.5), st.MaxValid)
	require.Len(t, ps, 1)
	assert.Equal(t, qcloud.Particle{Q: 0.007}, ps[0])
}

func TestFilterHeaderDownsamples(t *testing.T) {
	_, hd, st := Filter(nil, DefaultParams(), nil)
	assert.Equal(t, qcloud.Header{
		Count: 0, DownsamplingFactor: 8, TimeDim: 11, ZDim: 5, YDim: 51, XDim: 51,
	}, hd)
	assert.Equal(t, 0, st.Checked)
	assert.Equal(t, float32(0), st.MinValid)
}

func TestFilterProperties(t *testing.T) {
	d := qcloud.Dims{T: 5, Z: 9, Y: 40, X: 40}
	flat, err := (&volume.Synthetic{Dims: d, Seed: 3}).Read("q")
	require.NoError(t, err)

	tests := []struct {
		step, max     int
		min, maxQ     float32
		excludeOrigin bool
	}{
		{1, 1 << 30, 0.006, 0.00975, true},
		{2, 1 << 30, 0.001, 0.009, false},
		{3, 50, 0.0001, 0.01, true},
		{4, 1 << 30, 0, 0, true},
	}

	for i, test := range tests {
		p := Params{
			StepSize: test.step, MinThreshold: test.min, MaxThreshold: test.maxQ,
			MissingValue: volume.DefaultMissing, ExcludeOrigin: test.excludeOrigin,
			MaxParticles: test.max, Dims: d,
		}
		ps, _, st := Filter(flat, p, nil)

		assert.LessOrEqual(t, len(ps), test.max, "%d) cap", i)
		for _, pt := range ps {
			assert.True(t, pt.Q >= test.min && pt.Q <= test.maxQ,
				"%d) %v outside window", i, pt)
			assert.NotEqual(t, float32(volume.DefaultMissing), pt.Q)
			if test.excludeOrigin {
				assert.False(t, pt.X == 0 && pt.Y == 0 && pt.Z == 0,
					"%d) origin particle %v", i, pt)
			}
		}

		for j := 1; j < len(ps); j++ {
			a, b := ps[j-1], ps[j]
			ka := d.Index(int(a.T), int(a.Z), int(a.Y), int(a.X))
			kb := d.Index(int(b.T), int(b.Z), int(b.Y), int(b.X))
			assert.Less(t, ka, kb, "%d) traversal order broken at %d", i, j)
		}

		assert.Equal(t, st.Checked, st.Missing+st.Valid, "%d)", i)
	}
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	assert.NoError(t, p.Validate())

	bad := []func(*Params){
		func(p *Params) { p.StepSize = 0 },
		func(p *Params) { p.MinThreshold = 1 },
		func(p *Params) { p.MaxParticles = -1 },
		func(p *Params) { p.Dims.Y = 0 },
	}
	for i, f := range bad {
		p := DefaultParams()
		f(&p)
		assert.Error(t, p.Validate(), "%d)", i)
	}
}

func TestSummary(t *testing.T) {
	p := smallParams()
	p.MaxParticles = 3
	_, _, st := Filter(smallVolume(), p, nil)
	lines := st.Summary(p)

	assert.Equal(t, "Total checked: 7", lines[0])
	assert.Contains(t, lines, "Final particles: 3")
	assert.Contains(t, lines, "Limited to 3 particles: stopped at t=0, z=1, y=1, x=0")
	assert.Contains(t, lines, "Timesteps with no particles: [1]")
}

func runConfig(t *testing.T, format string) *io.PreprocessConfig {
	con := io.DefaultPreprocessWrapper().Preprocess
	con.Input = "memory"
	con.Output = filepath.Join(t.TempDir(), "particles.bytes")
	con.Format = format
	con.StepSize = 1
	con.TimeDim, con.ZDim, con.YDim, con.XDim = 2, 2, 2, 2
	return &con
}

func TestRunBinary(t *testing.T) {
	con := runConfig(t, "Binary")
	src := &volume.Memory{Name: "q", Values: smallVolume()}

	res, err := Run(src, con, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(24+10*20), res.Bytes)

	hd, ps, err := io.ReadContainerFile(con.Output)
	require.NoError(t, err)
	assert.Equal(t, res.Header, hd)

	want, _, _ := Filter(smallVolume(), smallParams(), nil)
	if diff := cmp.Diff(want, ps); diff != "" {
		t.Errorf("container differs (-want +got):\n%s", diff)
	}
}

func TestRunAsset(t *testing.T) {
	con := runConfig(t, "Asset")
	src := &volume.Memory{Name: "q", Values: smallVolume()}

	_, err := Run(src, con, nil)
	require.NoError(t, err)

	a, err := io.ReadAssetFile(con.Output)
	require.NoError(t, err)
	ps, err := a.Particles()
	require.NoError(t, err)
	assert.Len(t, ps, 10)
	assert.Equal(t, float32(0.006), a.Bounds().MinQ)
}

func TestRunEmptyAsset(t *testing.T) {
	con := runConfig(t, "Asset")
	src := &volume.Memory{Name: "q", Values: make([]float32, 16)}

	_, err := Run(src, con, nil)
	var dfe *qcloud.DataFormatError
	require.True(t, errors.As(err, &dfe))

	_, err = os.Stat(con.Output)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	con.Format = "Binary"
	res, err := Run(src, con, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.Header.Count)
}

func TestRunMissingDataset(t *testing.T) {
	con := runConfig(t, "Binary")
	con.Dataset = "u"
	src := &volume.Memory{Name: "q", Values: smallVolume()}

	_, err := Run(src, con, nil)
	var dfe *qcloud.DataFormatError
	require.True(t, errors.As(err, &dfe))

	_, err = os.Stat(con.Output)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunNilSource(t *testing.T) {
	_, err := Run(nil, runConfig(t, "Binary"), nil)
	var ce *qcloud.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
