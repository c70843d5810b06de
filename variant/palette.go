package variant

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/phil-mansfield/qcloud/io"
)

// White is what Mix returns when nothing is selected.
var White = colorful.Color{R: 1, G: 1, B: 1}

// Palette is the named colour of every variant, in selection order.
type Palette struct {
	Names  []string
	Colors []colorful.Color
}

// NewPalette builds a Palette from checked [Variant] sections.
func NewPalette(vs []io.VariantConfig) (*Palette, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("A palette needs at least one variant.")
	}
	p := &Palette{
		Names:  make([]string, len(vs)),
		Colors: make([]colorful.Color, len(vs)),
	}
	for i := range vs {
		c, err := colorful.Hex(vs[i].Hex())
		if err != nil {
			return nil, fmt.Errorf("Variant '%s': %w", vs[i].Name, err)
		}
		p.Names[i], p.Colors[i] = vs[i].Name, c
	}
	return p, nil
}

func (p *Palette) Len() int { return len(p.Colors) }

// Color returns the colour of variant k, or White if there is no such
// variant.
func (p *Palette) Color(k int) colorful.Color {
	if k < 0 || k >= len(p.Colors) {
		return White
	}
	return p.Colors[k]
}

// Mix averages the hue, saturation and value of the given variants
// component by component. Hues are averaged as plain numbers, not around
// the colour wheel, so red and blue mix to green rather than magenta.
func (p *Palette) Mix(ks []int) colorful.Color {
	var h, s, v float64
	n := 0
	for _, k := range ks {
		if k < 0 || k >= len(p.Colors) {
			continue
		}
		ch, cs, cv := p.Colors[k].Hsv()
		h, s, v = h+ch, s+cs, v+cv
		n++
	}
	if n == 0 {
		return White
	}
	return colorful.Hsv(h/float64(n), s/float64(n), v/float64(n))
}
