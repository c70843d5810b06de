package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/preprocess"
	"github.com/phil-mansfield/qcloud/volume"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeParticles(n int) []qcloud.Particle {
	ps := make([]qcloud.Particle, n)
	for i := range ps {
		ps[i] = qcloud.Particle{
			T: int32(i / 10), Z: 0, Y: int32(i % 3), X: int32(i % 10),
			Q: float32(i) * 1e-4,
		}
	}
	return ps
}

func writeContainer(t *testing.T, n int) (string, []qcloud.Particle) {
	ps := makeParticles(n)
	hd := qcloud.Header{
		Count: int32(n), DownsamplingFactor: 1,
		TimeDim: int32(n/10 + 1), ZDim: 1, YDim: 3, XDim: 10,
	}
	path := filepath.Join(t.TempDir(), "preprocessed_particles.bytes")
	require.NoError(t, io.WriteContainerFile(path, hd, ps))
	return path, ps
}

func TestLoaderStages(t *testing.T) {
	path, ps := writeContainer(t, 25)
	dev := &HostDevice{}
	l, err := New(&ContainerSource{Path: path}, dev, Options{
		ParticlesPerFrame: 10, UploadChunk: 4, UploadPerFrame: 8,
	})
	require.NoError(t, err)

	assert.False(t, l.Step(), "Step before Start")
	assert.False(t, l.Loading())

	l.Start()
	assert.True(t, l.Loading())

	steps := 0
	for l.Step() {
		steps++
		assert.Nil(t, l.Buffer())
		require.Less(t, steps, 100)
	}

	// open+header, 3 reads, alloc, 4 uploads. The finishing Step reports
	// that no work remains.
	assert.Equal(t, 9, steps)
	assert.True(t, l.Loaded())
	assert.False(t, l.Loading())
	assert.NoError(t, l.Err())
	assert.Equal(t, 1.0, l.Progress())
	assert.Equal(t, int32(25), l.Header().Count)

	// Two uploads per step, the last step uploading a single particle.
	assert.Equal(t, 7, dev.Uploads)

	buf := l.Buffer()
	require.NotNil(t, buf)
	if diff := cmp.Diff(ps, buf.Particles()); diff != "" {
		t.Errorf("buffer differs (-want +got):\n%s", diff)
	}

	l.Start()
	assert.False(t, l.Loading(), "Start after loading must be a no-op")

	l.Close()
	l.Close()
	assert.Equal(t, 1, dev.Releases)
	assert.Nil(t, l.Buffer())
}

func TestLoaderStartWhileLoading(t *testing.T) {
	path, ps := writeContainer(t, 25)
	dev := &HostDevice{}
	l, err := New(&ContainerSource{Path: path}, dev, Options{
		ParticlesPerFrame: 10, UploadChunk: 4, UploadPerFrame: 8,
	})
	require.NoError(t, err)

	l.Start()
	require.True(t, l.Step()) // open
	require.True(t, l.Step()) // first chunk
	require.Equal(t, stageRead, l.stage)
	require.Equal(t, 10, l.read)
	started := l.started

	l.Start()
	assert.Equal(t, stageRead, l.stage)
	assert.Equal(t, 10, l.read)
	assert.Equal(t, started, l.started)

	for l.Step() {
	}
	require.True(t, l.Loaded())
	assert.Equal(t, 7, dev.Uploads)
	if diff := cmp.Diff(ps, l.Buffer().Particles()); diff != "" {
		t.Errorf("buffer differs (-want +got):\n%s", diff)
	}
	l.Close()
}

func TestLoaderProgress(t *testing.T) {
	path, _ := writeContainer(t, 20)
	l, err := New(&ContainerSource{Path: path}, &HostDevice{}, Options{
		ParticlesPerFrame: 10, UploadChunk: 10, UploadPerFrame: 10,
	})
	require.NoError(t, err)

	l.Start()
	prev := l.Progress()
	for l.Step() {
		p := l.Progress()
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	assert.Equal(t, 1.0, prev)
}

func TestLoaderMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bytes")
	l, err := New(&ContainerSource{Path: path}, &HostDevice{}, Options{})
	require.NoError(t, err)

	l.Start()
	assert.False(t, l.Step())
	assert.False(t, l.Loaded())
	assert.True(t, l.Failed())
	assert.True(t, errors.Is(l.Err(), fs.ErrNotExist))

	// No retry per instance, even once the file exists.
	hd := qcloud.Header{Count: 0, DownsamplingFactor: 1}
	require.NoError(t, io.WriteContainerFile(path, hd, nil))
	l.Start()
	assert.False(t, l.Step())
	assert.False(t, l.Loaded())
}

func TestLoaderDeviceLimit(t *testing.T) {
	path, _ := writeContainer(t, 30)
	dev := &HostDevice{MaxParticles: 10}
	l, err := New(&ContainerSource{Path: path}, dev, Options{})
	require.NoError(t, err)

	assert.Error(t, l.Run(context.Background()))
	assert.True(t, l.Failed())
	assert.Equal(t, 0, dev.Uploads)
}

func TestLoaderEmpty(t *testing.T) {
	path, _ := writeContainer(t, 0)
	l, err := New(&ContainerSource{Path: path}, &HostDevice{}, Options{})
	require.NoError(t, err)

	require.NoError(t, l.Run(context.Background()))
	assert.True(t, l.Loaded())
	assert.Equal(t, 0, l.Buffer().Len())
}

func TestLoaderRunCancelled(t *testing.T) {
	path, _ := writeContainer(t, 30)
	l, err := New(&ContainerSource{Path: path}, &HostDevice{}, Options{
		ParticlesPerFrame: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	assert.True(t, l.Loading())
	l.Close()
	assert.False(t, l.Loading())
}

func TestNewRequiresSourceAndDevice(t *testing.T) {
	var ce *qcloud.ConfigurationError
	_, err := New(nil, &HostDevice{}, Options{})
	assert.True(t, errors.As(err, &ce))
	_, err = New(&ContainerSource{}, nil, Options{})
	assert.True(t, errors.As(err, &ce))

	l, err := New(&ContainerSource{}, &HostDevice{}, Options{})
	require.NoError(t, err)
	assert.Error(t, l.Run(context.Background()))
	assert.True(t, errors.As(l.Err(), &ce))
}

func TestAssetSource(t *testing.T) {
	ps := makeParticles(12)
	hd := qcloud.Header{Count: 12, DownsamplingFactor: 2, TimeDim: 2}
	a, err := io.NewAsset(hd, ps)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	require.NoError(t, io.WriteAssetFile(path, a))

	l, err := New(&AssetSource{Path: path}, &HostDevice{}, Options{
		ParticlesPerFrame: 5,
	})
	require.NoError(t, err)
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, ps, l.Buffer().Particles())
	assert.Equal(t, hd, l.Header())
}

func TestGeneratorSource(t *testing.T) {
	d := qcloud.Dims{T: 3, Z: 5, Y: 24, X: 24}
	p := preprocess.DefaultParams()
	p.StepSize, p.Dims = 2, d
	p.MinThreshold, p.MaxThreshold = 0.001, 0.01

	src := &GeneratorSource{Volume: &volume.Synthetic{Dims: d, Seed: 1}, Params: p}
	l, err := New(src, &HostDevice{}, Options{})
	require.NoError(t, err)
	require.NoError(t, l.Run(context.Background()))

	flat, err := (&volume.Synthetic{Dims: d, Seed: 1}).Read("q")
	require.NoError(t, err)
	want, hd, _ := preprocess.Filter(flat, p, nil)
	assert.Equal(t, hd, l.Header())
	assert.Equal(t, want, l.Buffer().Particles())
	assert.Equal(t, "generator over synthetic volume {3 5 24 24} (seed 1)",
		Describe(src))
}

func TestBufferSlice(t *testing.T) {
	b := ViewOf(makeParticles(10))
	s := b.Slice(2, 5)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, b.Particles()[2], s.Particles()[0])

	var empty *Buffer
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.Particles())
}

func TestWatch(t *testing.T) {
	path, _ := writeContainer(t, 5)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() { calls.Add(1) }, nil)
	}()

	// Give the watcher time to register before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	hd := qcloud.Header{Count: 1, DownsamplingFactor: 1, TimeDim: 1}
	require.NoError(t, io.WriteContainerFile(path, hd, makeParticles(1)))

	// Unrelated files in the directory are ignored.
	other := filepath.Join(filepath.Dir(path), "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))

	assert.Eventually(t, func() bool { return calls.Load() == 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}
