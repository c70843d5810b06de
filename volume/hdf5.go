package volume

import (
	"os"
	"strings"

	"github.com/scigolib/hdf5"

	"github.com/phil-mansfield/qcloud"
)

// HDF5 reads top-level datasets out of an HDF5 (or NetCDF-4) file.
type HDF5 struct {
	Path string
}

// Read returns the named top-level dataset converted to float32. Nested
// datasets with the same name are not considered.
func (h *HDF5) Read(name string) ([]float32, error) {
	if _, err := os.Stat(h.Path); err != nil {
		return nil, qcloud.FormatError(h.Path, err, "source file not found")
	}

	f, err := hdf5.Open(h.Path)
	if err != nil {
		return nil, qcloud.FormatError(h.Path, err, "cannot open HDF5 file")
	}
	defer f.Close()

	target := "/" + strings.TrimPrefix(name, "/")
	var ds *hdf5.Dataset
	f.Walk(func(path string, obj hdf5.Object) {
		if d, ok := obj.(*hdf5.Dataset); ok && ds == nil && path == target {
			ds = d
		}
	})
	if ds == nil {
		return nil, qcloud.FormatError(h.Path, nil,
			"no dataset named '%s' found in file", target)
	}

	vals, err := ds.Read()
	if err != nil {
		return nil, qcloud.FormatError(h.Path, err,
			"cannot read dataset '%s'", target)
	}

	out := make([]float32, len(vals))
	for i := range vals {
		out[i] = float32(vals[i])
	}
	return out, nil
}
