/*package volume provides access to the 4-D scalar fields that particle
containers are made from.

A volume is always handed out flattened in t, z, y, x order. Its shape is
not part of the interface: callers supply the dimensions they expect,
because the source files do not reliably carry them.
*/
package volume

import (
	"fmt"

	"github.com/phil-mansfield/qcloud"
)

// Source is anything a named scalar array can be read out of.
type Source interface {
	Read(name string) ([]float32, error)
}

// Memory is a Source backed by a single in-memory array.
type Memory struct {
	Name   string
	Values []float32
}

func (m *Memory) Read(name string) ([]float32, error) {
	if name != m.Name {
		return nil, qcloud.FormatError("", nil,
			"no dataset named '/%s' found in memory volume", name)
	}
	return m.Values, nil
}

// Describe returns a short human-readable description of a Source.
func Describe(src Source) string {
	switch s := src.(type) {
	case *HDF5:
		return s.Path
	case *Synthetic:
		return fmt.Sprintf("synthetic volume %v (seed %d)", s.Dims, s.Seed)
	case *Memory:
		return fmt.Sprintf("memory volume '%s' (%d values)", s.Name, len(s.Values))
	}
	return fmt.Sprintf("%T", src)
}
