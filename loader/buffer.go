package loader

import (
	"fmt"

	"github.com/phil-mansfield/qcloud"
)

// Buffer is a read-only view of particles that somebody else owns. Holding
// a Buffer never keeps the underlying storage alive past its owner's
// Release, and a Buffer cannot release anything itself.
type Buffer struct {
	ps []qcloud.Particle
}

// ViewOf wraps host memory the caller owns. The caller must not modify ps
// while the view is in use.
func ViewOf(ps []qcloud.Particle) *Buffer { return &Buffer{ps} }

// Len returns the number of particles in the view.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ps)
}

// Particles returns the particles in the view. The slice must not be
// modified.
func (b *Buffer) Particles() []qcloud.Particle {
	if b == nil {
		return nil
	}
	return b.ps
}

// Slice returns the view [lo, hi).
func (b *Buffer) Slice(lo, hi int) *Buffer {
	return &Buffer{b.ps[lo:hi:hi]}
}

// Device allocates particle buffers. It is the host rendering layer's
// GPU-visible memory.
type Device interface {
	NewBuffer(n int) (DeviceBuffer, error)
}

// DeviceBuffer is a fixed-size buffer owned by whoever allocated it.
type DeviceBuffer interface {
	// Upload copies src into the buffer starting at offset.
	Upload(src []qcloud.Particle, offset int) error
	// View returns a non-owning handle for consumers.
	View() *Buffer
	// Release frees the buffer. Further calls are no-ops.
	Release()
}

// HostDevice allocates buffers in ordinary memory.
type HostDevice struct {
	// MaxParticles limits the size of a single buffer. Zero means no limit.
	MaxParticles int

	// Uploads and Releases count calls across all buffers.
	Uploads, Releases int
}

type hostBuffer struct {
	dev      *HostDevice
	ps       []qcloud.Particle
	released bool
}

func (dev *HostDevice) NewBuffer(n int) (DeviceBuffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("Cannot allocate a buffer of %d particles.", n)
	} else if dev.MaxParticles > 0 && n > dev.MaxParticles {
		return nil, fmt.Errorf(
			"Buffer of %d particles exceeds the device limit of %d.",
			n, dev.MaxParticles,
		)
	}
	return &hostBuffer{dev: dev, ps: make([]qcloud.Particle, n)}, nil
}

func (buf *hostBuffer) Upload(src []qcloud.Particle, offset int) error {
	if buf.released {
		return fmt.Errorf("Upload to a released buffer.")
	} else if offset < 0 || offset+len(src) > len(buf.ps) {
		return fmt.Errorf(
			"Upload of %d particles at offset %d overruns buffer of %d.",
			len(src), offset, len(buf.ps),
		)
	}
	copy(buf.ps[offset:], src)
	buf.dev.Uploads++
	return nil
}

func (buf *hostBuffer) View() *Buffer {
	if buf.released {
		return nil
	}
	return &Buffer{buf.ps}
}

func (buf *hostBuffer) Release() {
	if buf.released {
		return
	}
	buf.released = true
	buf.ps = nil
	buf.dev.Releases++
}
