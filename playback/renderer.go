package playback

import (
	"fmt"

	"github.com/phil-mansfield/qcloud/loader"
)

// Renderer is the host rendering layer. Buffers passed to it are views:
// the renderer may hold on to them but must never release them.
type Renderer interface {
	SetBuffer(buf *loader.Buffer)
	SetPointCount(n int)
	SetTimestep(step int)
	SetVariant(k int)
	Play()
	Stop()
}

// Call is a single recorded Renderer call.
type Call struct {
	Method string
	Arg    int
}

func (c Call) String() string { return fmt.Sprintf("%s(%d)", c.Method, c.Arg) }

// Recorder is a Renderer which records every call made to it.
type Recorder struct {
	Calls  []Call
	Buffer *loader.Buffer
}

func (r *Recorder) SetBuffer(buf *loader.Buffer) {
	r.Buffer = buf
	r.Calls = append(r.Calls, Call{"SetBuffer", buf.Len()})
}

func (r *Recorder) SetPointCount(n int) {
	r.Calls = append(r.Calls, Call{"SetPointCount", n})
}

func (r *Recorder) SetTimestep(step int) {
	r.Calls = append(r.Calls, Call{"SetTimestep", step})
}

func (r *Recorder) SetVariant(k int) {
	r.Calls = append(r.Calls, Call{"SetVariant", k})
}

func (r *Recorder) Play() { r.Calls = append(r.Calls, Call{"Play", 0}) }
func (r *Recorder) Stop() { r.Calls = append(r.Calls, Call{"Stop", 0}) }

// Count returns the number of recorded calls to method.
func (r *Recorder) Count(method string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.Calls = r.Calls[:0]
	r.Buffer = nil
}
