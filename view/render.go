package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/loader"
	"github.com/phil-mansfield/qcloud/variant"
)

// ramp goes from empty to densest.
const ramp = " .:-=+*#%@"

// TermRenderer draws the x-y density of the current frame as characters,
// tinted with the active variant's colour. It only ever holds views of the
// particle buffer.
type TermRenderer struct {
	Width, Height int

	palette *variant.Palette
	xDim    int
	yDim    int
	buf     *loader.Buffer
	count   int
	step    int
	active  int
	playing bool
}

// NewTermRenderer creates a renderer drawing into a width x height block.
func NewTermRenderer(p *variant.Palette, width, height int) *TermRenderer {
	return &TermRenderer{
		Width: width, Height: height, palette: p,
		step: -1, active: -1,
	}
}

// SetGrid sets the extent of the downsampled grid the particles live on.
func (r *TermRenderer) SetGrid(hd qcloud.Header) {
	r.xDim, r.yDim = int(hd.XDim), int(hd.YDim)
}

func (r *TermRenderer) SetBuffer(buf *loader.Buffer) { r.buf = buf }
func (r *TermRenderer) SetPointCount(n int)          { r.count = n }
func (r *TermRenderer) SetTimestep(step int)         { r.step = step }
func (r *TermRenderer) SetVariant(k int)             { r.active = k }
func (r *TermRenderer) Play()                        { r.playing = true }
func (r *TermRenderer) Stop()                        { r.playing = false }

func (r *TermRenderer) Playing() bool { return r.playing }
func (r *TermRenderer) Timestep() int { return r.step }
func (r *TermRenderer) Variant() int  { return r.active }

// Density returns per-cell particle counts, indexed [row][column]. Only
// the first SetPointCount particles of the buffer are drawn.
func (r *TermRenderer) Density() [][]int {
	grid := make([][]int, r.Height)
	for i := range grid {
		grid[i] = make([]int, r.Width)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return grid
	}

	ps := r.buf.Particles()
	if r.count < len(ps) {
		ps = ps[:r.count]
	}

	xDim, yDim := r.xDim, r.yDim
	if xDim <= 0 || yDim <= 0 {
		for _, p := range ps {
			if int(p.X) >= xDim {
				xDim = int(p.X) + 1
			}
			if int(p.Y) >= yDim {
				yDim = int(p.Y) + 1
			}
		}
	}

	for _, p := range ps {
		if p.X < 0 || p.Y < 0 || int(p.X) >= xDim || int(p.Y) >= yDim {
			continue
		}
		col := int(p.X) * r.Width / xDim
		// Rows grow downwards on a terminal.
		row := r.Height - 1 - int(p.Y)*r.Height/yDim
		grid[row][col]++
	}
	return grid
}

// Render returns the density map. Nothing is drawn while stopped.
func (r *TermRenderer) Render() string {
	if !r.playing {
		return ""
	}

	grid := r.Density()
	max := 0
	for _, row := range grid {
		for _, n := range row {
			if n > max {
				max = n
			}
		}
	}

	sb := &strings.Builder{}
	for i, row := range grid {
		for _, n := range row {
			k := 0
			if n > 0 {
				k = n * (len(ramp) - 1) / max
				if k == 0 {
					k = 1
				}
			}
			sb.WriteByte(ramp[k])
		}
		if i < len(grid)-1 {
			sb.WriteByte('\n')
		}
	}

	style := lipgloss.NewStyle()
	if r.palette != nil {
		style = style.Foreground(lipgloss.Color(r.Tint().Hex()))
	}
	return style.Render(sb.String())
}

// Tint is the colour particles are drawn in: the mix of the shown variants,
// or white when none is active or there is no palette.
func (r *TermRenderer) Tint() colorful.Color {
	if r.palette == nil || r.active < 0 {
		return variant.White
	}
	return r.palette.Mix([]int{r.active})
}
