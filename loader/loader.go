/*package loader moves a particle container into a device buffer without
holding up the frame loop.

A Loader is a staged task. The host calls Step once per frame, and each call
does a bounded amount of work before returning. Nothing here is safe for
concurrent use: the loader, its buffer and the playback controller all live
on the host's frame loop.
*/
package loader

import (
	"context"
	"errors"
	gio "io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
)

const (
	DefaultParticlesPerFrame = 50000
	DefaultUploadChunk       = 1000
	DefaultUploadPerFrame    = 200000
)

// Options bounds the work done per Step.
type Options struct {
	// ParticlesPerFrame is the number of records decoded per Step.
	ParticlesPerFrame int
	// UploadChunk is the size of a single device upload and UploadPerFrame
	// the number of particles which may be uploaded in one Step.
	UploadChunk, UploadPerFrame int

	Log *zap.Logger
}

type stage int

const (
	stageIdle stage = iota
	stageOpen
	stageRead
	stageAlloc
	stageUpload
	stageFinish
	stageLoaded
	stageFailed
)

// Loader loads one Source into one DeviceBuffer. An instance loads at most
// once: after it has loaded or failed, Start does nothing.
type Loader struct {
	src Source
	dev Device
	opt Options
	log *zap.Logger

	stage    stage
	stream   Stream
	hd       qcloud.Header
	host     []qcloud.Particle
	read     int
	buf      DeviceBuffer
	uploaded int
	err      error
	started  time.Time
}

// New creates a Loader. Zero-valued Options fields take their defaults.
func New(src Source, dev Device, opt Options) (*Loader, error) {
	if src == nil {
		return nil, &qcloud.ConfigurationError{What: "particle source"}
	} else if dev == nil {
		return nil, &qcloud.ConfigurationError{What: "device"}
	}

	if opt.ParticlesPerFrame <= 0 {
		opt.ParticlesPerFrame = DefaultParticlesPerFrame
	}
	if opt.UploadChunk <= 0 {
		opt.UploadChunk = DefaultUploadChunk
	}
	if opt.UploadPerFrame < opt.UploadChunk {
		opt.UploadPerFrame = DefaultUploadPerFrame
		if opt.UploadPerFrame < opt.UploadChunk {
			opt.UploadPerFrame = opt.UploadChunk
		}
	}

	log := opt.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{src: src, dev: dev, opt: opt, log: log}, nil
}

// Start begins loading. It is a no-op while a load is in flight, once the
// loader has finished, and after a failure.
func (l *Loader) Start() {
	if l.stage != stageIdle {
		return
	}
	l.stage = stageOpen
	l.started = time.Now()
	l.log.Info("Loading particles.", zap.String("source", Describe(l.src)))
}

// Step does one bounded slice of work and reports whether more remains.
// Before Start it does nothing and returns false.
func (l *Loader) Step() bool {
	switch l.stage {
	case stageOpen:
		l.open()
	case stageRead:
		l.readChunk()
	case stageAlloc:
		l.alloc()
	case stageUpload:
		l.upload()
	case stageFinish:
		l.stage = stageLoaded
		l.log.Info("Device buffer ready.",
			zap.String("particles", humanize.Comma(int64(l.hd.Count))),
			zap.Duration("elapsed", time.Since(l.started)))
	}
	return l.Loading()
}

func (l *Loader) fail(err error) {
	if l.stream != nil {
		l.stream.Close()
		l.stream = nil
	}
	if l.buf != nil {
		l.buf.Release()
		l.buf = nil
	}
	l.host = nil
	l.err = err
	l.stage = stageFailed
	l.log.Error("Loading failed.",
		zap.String("source", Describe(l.src)), zap.Error(err))
}

func (l *Loader) open() {
	stream, err := l.src.Open()
	if err != nil {
		l.fail(err)
		return
	}
	l.stream = stream
	l.hd = stream.Header()
	if l.hd.Count < 0 {
		l.fail(qcloud.FormatError("", nil,
			"negative particle count %d", l.hd.Count))
		return
	}

	l.host = make([]qcloud.Particle, l.hd.Count)
	l.stage = stageRead
	l.log.Info("Read header.",
		zap.String("particles", humanize.Comma(int64(l.hd.Count))),
		zap.Int32("downsampling", l.hd.DownsamplingFactor),
		zap.Int32s("dims", []int32{l.hd.TimeDim, l.hd.ZDim, l.hd.YDim, l.hd.XDim}))
}

func (l *Loader) readChunk() {
	n := len(l.host) - l.read
	if n > l.opt.ParticlesPerFrame {
		n = l.opt.ParticlesPerFrame
	}

	chunk := l.host[l.read : l.read+n]
	for len(chunk) > 0 {
		m, err := l.stream.Read(chunk)
		chunk = chunk[m:]
		l.read += m
		if errors.Is(err, gio.EOF) {
			if len(chunk) > 0 {
				l.fail(qcloud.FormatError("", gio.ErrUnexpectedEOF,
					"stream ended after %d of %d particles", l.read, len(l.host)))
				return
			}
			break
		} else if err != nil {
			l.fail(err)
			return
		}
	}

	if l.read == len(l.host) {
		l.stream.Close()
		l.stream = nil
		l.stage = stageAlloc
	}
	l.log.Debug("Read particles.",
		zap.Int("read", l.read), zap.Int("total", len(l.host)))
}

func (l *Loader) alloc() {
	buf, err := l.dev.NewBuffer(len(l.host))
	if err != nil {
		l.fail(err)
		return
	}
	l.buf = buf
	l.stage = stageUpload
}

func (l *Loader) upload() {
	budget := l.opt.UploadPerFrame
	for budget > 0 && l.uploaded < len(l.host) {
		n := len(l.host) - l.uploaded
		if n > l.opt.UploadChunk {
			n = l.opt.UploadChunk
		}
		if n > budget {
			n = budget
		}
		if err := l.buf.Upload(l.host[l.uploaded:l.uploaded+n], l.uploaded); err != nil {
			l.fail(err)
			return
		}
		l.uploaded += n
		budget -= n
	}

	l.log.Debug("Uploaded particles.",
		zap.Int("uploaded", l.uploaded), zap.Int("total", len(l.host)))
	if l.uploaded == len(l.host) {
		l.host = nil
		l.stage = stageFinish
	}
}

// Run steps the loader to completion. It checks ctx between steps, and a
// cancelled Run leaves the loader where it stopped.
func (l *Loader) Run(ctx context.Context) error {
	l.Start()
	for l.Step() {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return l.err
}

// Loading is true between Start and the end of the load.
func (l *Loader) Loading() bool {
	return l.stage != stageIdle && l.stage != stageLoaded &&
		l.stage != stageFailed
}

// Loaded is true once the device buffer is ready.
func (l *Loader) Loaded() bool { return l.stage == stageLoaded }

// Failed is true if the load failed. Err returns the reason.
func (l *Loader) Failed() bool { return l.stage == stageFailed }

func (l *Loader) Err() error { return l.err }

// Header returns the header of the loaded container. It is the zero Header
// until the header stage has run.
func (l *Loader) Header() qcloud.Header { return l.hd }

// Progress returns the fraction of reading and uploading which is done.
func (l *Loader) Progress() float64 {
	switch l.stage {
	case stageIdle, stageOpen:
		return 0
	case stageFinish, stageLoaded:
		return 1
	}
	if l.hd.Count == 0 {
		return 0
	}
	return float64(l.read+l.uploaded) / float64(2*int(l.hd.Count))
}

// Buffer returns a non-owning view of the loaded particles, or nil if the
// loader has not finished.
func (l *Loader) Buffer() *Buffer {
	if l.stage != stageLoaded || l.buf == nil {
		return nil
	}
	return l.buf.View()
}

// Close releases the device buffer. Views handed out earlier must not be
// used afterwards.
func (l *Loader) Close() {
	if l.stream != nil {
		l.stream.Close()
		l.stream = nil
	}
	if l.buf != nil {
		l.buf.Release()
		l.buf = nil
	}
	if l.Loading() {
		l.stage = stageFailed
		l.err = errors.New("loader closed while loading")
	}
}
