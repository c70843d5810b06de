/*package playback steps a loaded particle buffer through its timesteps and
hands each one to a Renderer.

A Controller does nothing until its loader has finished. If the loader fails,
or does not finish within the load timeout, the controller disables itself
and every later call is a no-op.
*/
package playback

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/loader"
)

const (
	DefaultTimestepInterval = time.Second
	DefaultLoadTimeout      = 10 * time.Second
)

// Loader is the part of a loader.Loader a Controller waits on.
type Loader interface {
	Loading() bool
	Loaded() bool
	Failed() bool
	Err() error
	Header() qcloud.Header
	Buffer() *loader.Buffer
}

type Options struct {
	// TimestepInterval is the time between automatic steps.
	TimestepInterval time.Duration
	// AutoPlay starts stepping as soon as the controller is initialized.
	AutoPlay bool
	// LoadTimeout bounds how long the controller waits for its loader.
	LoadTimeout time.Duration
	// MaxTimestep overrides the last timestep when positive.
	MaxTimestep int

	Log *zap.Logger
}

// Controller owns the current timestep. It holds the loader's buffer as a
// view and never releases it.
type Controller struct {
	ld  Loader
	r   Renderer
	opt Options
	log *zap.Logger

	enabled     bool
	err         error
	waited      time.Duration
	bound       bool
	initialized bool
	index       *Index
	max         int

	current    int
	playing    bool
	acc        time.Duration
	dispatches int
}

// New creates a Controller. Zero-valued durations in opt take their
// defaults.
func New(ld Loader, r Renderer, opt Options) (*Controller, error) {
	if ld == nil {
		return nil, &qcloud.ConfigurationError{What: "loader"}
	} else if r == nil {
		return nil, &qcloud.ConfigurationError{What: "renderer"}
	}
	if opt.TimestepInterval <= 0 {
		opt.TimestepInterval = DefaultTimestepInterval
	}
	if opt.LoadTimeout <= 0 {
		opt.LoadTimeout = DefaultLoadTimeout
	}
	log := opt.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Controller{
		ld: ld, r: r, opt: opt, log: log,
		enabled: true, current: -1,
	}, nil
}

func (c *Controller) disable(err error) {
	c.enabled = false
	c.playing = false
	c.err = err
	c.log.Error("Playback disabled.", zap.Error(err))
}

// poll checks on the loader and binds its buffer once it is ready.
func (c *Controller) poll(dt time.Duration) {
	switch {
	case c.ld.Failed():
		c.disable(c.ld.Err())
	case c.ld.Loaded():
		c.bind()
	default:
		c.waited += dt
		if c.waited >= c.opt.LoadTimeout {
			c.disable(qcloud.ErrTimeout)
		}
	}
}

func (c *Controller) bind() {
	buf := c.ld.Buffer()
	if buf == nil {
		c.disable(&qcloud.ConfigurationError{What: "loaded buffer"})
		return
	}

	c.index = NewIndex(buf, c.ld.Header())
	c.max = c.index.MaxTimestep()
	if c.opt.MaxTimestep > 0 {
		c.max = c.opt.MaxTimestep
	}
	c.bound = true

	c.r.SetBuffer(buf)
	c.r.SetPointCount(buf.Len())
	c.log.Info("Bound particle buffer.",
		zap.Int("particles", buf.Len()), zap.Int("maxTimestep", c.max),
		zap.Bool("contiguous", c.index.Contiguous()))

	if c.initialized {
		c.Initialize()
	}
}

// Update advances the controller by dt of frame time. While waiting on the
// loader it counts dt against the load timeout. While playing it advances
// one step for every whole TimestepInterval elapsed.
func (c *Controller) Update(dt time.Duration) {
	if !c.enabled {
		return
	}
	if !c.bound {
		c.poll(dt)
		return
	}
	if !c.playing {
		return
	}

	c.acc += dt
	for c.acc >= c.opt.TimestepInterval {
		c.acc -= c.opt.TimestepInterval
		c.SetTimestep(c.current + 1)
	}
}

// SetTimestep shows step, taken modulo the number of timesteps. It returns
// false without touching the renderer if step is already showing or the
// controller is not ready.
func (c *Controller) SetTimestep(step int) bool {
	if !c.enabled || !c.bound {
		return false
	}

	n := c.max + 1
	step = ((step % n) + n) % n
	if step == c.current {
		return false
	}

	frame := c.index.Frame(step)
	c.r.SetBuffer(frame)
	c.r.SetPointCount(frame.Len())
	c.r.SetTimestep(step)
	c.current = step
	c.dispatches++
	return true
}

// Initialize starts the renderer and shows the first timestep. It returns
// false if the buffer is not bound yet, in which case initialization
// happens as soon as it is.
func (c *Controller) Initialize() bool {
	if !c.enabled {
		return false
	}
	c.initialized = true
	if !c.bound {
		if !c.ld.Loaded() {
			return false
		}
		// bind calls back into Initialize.
		c.bind()
		return c.bound
	}

	c.r.Play()
	if c.opt.AutoPlay {
		c.playing = true
	}
	c.SetTimestep(0)
	return true
}

// Play resumes automatic stepping. Elapsed time kept by Pause carries over.
func (c *Controller) Play() {
	if !c.enabled || !c.bound {
		return
	}
	c.playing = true
	if c.current < 0 {
		c.SetTimestep(0)
	}
}

// Pause stops automatic stepping. The partial interval is kept.
func (c *Controller) Pause() { c.playing = false }

// Toggle switches between Play and Pause.
func (c *Controller) Toggle() {
	if c.playing {
		c.Pause()
	} else {
		c.Play()
	}
}

func (c *Controller) Next() bool     { return c.SetTimestep(c.current + 1) }
func (c *Controller) Previous() bool { return c.SetTimestep(c.current - 1) }

// Reset goes back to timestep 0 and drops the partial interval.
func (c *Controller) Reset() bool {
	c.acc = 0
	return c.SetTimestep(0)
}

// Seek shows the timestep nearest to fraction of the way through, the way
// a slider in [0, 1] would.
func (c *Controller) Seek(fraction float64) bool {
	if !c.enabled || !c.bound {
		return false
	}
	fraction = math.Max(0, math.Min(1, fraction))
	return c.SetTimestep(int(math.Round(fraction * float64(c.max))))
}

// Fraction is the inverse of Seek.
func (c *Controller) Fraction() float64 {
	if c.max == 0 || c.current <= 0 {
		return 0
	}
	return float64(c.current) / float64(c.max)
}

// Stop pauses and stops the renderer. A later Initialize starts again from
// timestep 0.
func (c *Controller) Stop() {
	c.playing = false
	c.initialized = false
	if c.enabled {
		c.r.Stop()
	}
}

// SetVariant forwards the active variant to the renderer.
func (c *Controller) SetVariant(k int) {
	if c.enabled {
		c.r.SetVariant(k)
	}
}

// Rebind switches to a new loader, as when the container has been rewritten.
// The controller starts waiting again with a fresh timeout, and disabling
// caused by the previous loader is forgotten. Closing the previous loader is
// up to its owner.
func (c *Controller) Rebind(ld Loader) error {
	if ld == nil {
		return &qcloud.ConfigurationError{What: "loader"}
	}
	c.ld = ld
	c.enabled, c.err = true, nil
	c.bound, c.index, c.max = false, nil, 0
	c.waited, c.acc = 0, 0
	c.current = -1
	c.playing = false
	return nil
}

func (c *Controller) Loaded() bool         { return c.bound }
func (c *Controller) Loading() bool        { return c.ld.Loading() }
func (c *Controller) CurrentTimestep() int { return c.current }
func (c *Controller) MaxTimestep() int     { return c.max }
func (c *Controller) Dispatches() int      { return c.dispatches }
func (c *Controller) Playing() bool        { return c.playing }
func (c *Controller) Enabled() bool        { return c.enabled }
func (c *Controller) Err() error           { return c.err }

// Frame returns the particles currently showing.
func (c *Controller) Frame() *loader.Buffer {
	if !c.bound || c.current < 0 {
		return nil
	}
	return c.index.Frame(c.current)
}
