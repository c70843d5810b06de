package loader

import (
	"fmt"
	gio "io"

	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/preprocess"
	"github.com/phil-mansfield/qcloud/volume"
)

// Stream is an opened particle source. Read follows io.Reader conventions:
// it returns io.EOF once every particle has been read.
type Stream interface {
	Header() qcloud.Header
	Read(buf []qcloud.Particle) (int, error)
	Close() error
}

// Source is where a Loader gets its particles from.
type Source interface {
	Open() (Stream, error)
}

// ContainerSource reads a preprocessed binary container.
type ContainerSource struct {
	Path string
}

type containerStream struct {
	*io.ContainerReader
}

func (s containerStream) Read(buf []qcloud.Particle) (int, error) {
	return s.ReadChunk(buf)
}

func (src *ContainerSource) Open() (Stream, error) {
	if src.Path == "" {
		return nil, &qcloud.ConfigurationError{What: "container path"}
	}
	cr, err := io.OpenContainer(src.Path)
	if err != nil {
		return nil, err
	}
	return containerStream{cr}, nil
}

// AssetSource reads a baked YAML asset. The whole asset is decoded on Open,
// so only the upload is spread across frames.
type AssetSource struct {
	Path string
}

func (src *AssetSource) Open() (Stream, error) {
	if src.Path == "" {
		return nil, &qcloud.ConfigurationError{What: "asset path"}
	}
	a, err := io.ReadAssetFile(src.Path)
	if err != nil {
		return nil, err
	}
	ps, err := a.Particles()
	if err != nil {
		return nil, err
	}
	return &memStream{hd: a.Header(), ps: ps}, nil
}

// GeneratorSource builds particles on the fly by running the preprocessing
// filter over a volume, usually a volume.Synthetic.
type GeneratorSource struct {
	Volume  volume.Source
	Dataset string
	Params  preprocess.Params
	Log     *zap.Logger
}

func (src *GeneratorSource) Open() (Stream, error) {
	if src.Volume == nil {
		return nil, &qcloud.ConfigurationError{What: "generator volume"}
	}
	if err := src.Params.Validate(); err != nil {
		return nil, err
	}

	name := src.Dataset
	if name == "" {
		name = "q"
	}
	flat, err := src.Volume.Read(name)
	if err != nil {
		return nil, err
	}
	ps, hd, _ := preprocess.Filter(flat, src.Params, src.Log)
	return &memStream{hd: hd, ps: ps}, nil
}

// memStream streams particles which are already in memory.
type memStream struct {
	hd  qcloud.Header
	ps  []qcloud.Particle
	off int
}

func (s *memStream) Header() qcloud.Header { return s.hd }

func (s *memStream) Read(buf []qcloud.Particle) (int, error) {
	if s.off >= len(s.ps) {
		return 0, gio.EOF
	}
	n := copy(buf, s.ps[s.off:])
	s.off += n
	return n, nil
}

func (s *memStream) Close() error { return nil }

// Describe returns a short human-readable description of a Source.
func Describe(src Source) string {
	switch s := src.(type) {
	case *ContainerSource:
		return fmt.Sprintf("container %s", s.Path)
	case *AssetSource:
		return fmt.Sprintf("asset %s", s.Path)
	case *GeneratorSource:
		if s.Volume == nil {
			return "generator"
		}
		return "generator over " + volume.Describe(s.Volume)
	}
	return fmt.Sprintf("%T", src)
}
