package io

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/qcloud"
)

// Asset is a baked dataset: container metadata, value ranges and the
// encoded particle records, stored as a single YAML document.
type Asset struct {
	ParticleCount      int32 `yaml:"particleCount"`
	DownsamplingFactor int32 `yaml:"downsamplingFactor"`
	TimeDim            int32 `yaml:"timeDim"`
	ZDim               int32 `yaml:"zDim"`
	YDim               int32 `yaml:"yDim"`
	XDim               int32 `yaml:"xDim"`

	MinX int32   `yaml:"minX"`
	MaxX int32   `yaml:"maxX"`
	MinY int32   `yaml:"minY"`
	MaxY int32   `yaml:"maxY"`
	MinZ int32   `yaml:"minZ"`
	MaxZ int32   `yaml:"maxZ"`
	MinQ float32 `yaml:"minQ"`
	MaxQ float32 `yaml:"maxQ"`

	// SerializedData is the base64 encoding of the particle records in
	// container order.
	SerializedData string `yaml:"serializedData"`

	path string
}

// NewAsset bakes a header and its particles into an Asset.
func NewAsset(hd qcloud.Header, ps []qcloud.Particle) (*Asset, error) {
	if int(hd.Count) != len(ps) {
		return nil, fmt.Errorf(
			"Header count %d does not match particle count %d.",
			hd.Count, len(ps),
		)
	}

	buf := &bytes.Buffer{}
	buf.Grow(len(ps) * qcloud.ParticleSize)
	if err := binary.Write(buf, end, ps); err != nil {
		return nil, err
	}

	b := qcloud.BoundsOf(ps)
	a := &Asset{
		ParticleCount:      hd.Count,
		DownsamplingFactor: hd.DownsamplingFactor,
		TimeDim:            hd.TimeDim,
		ZDim:               hd.ZDim,
		YDim:               hd.YDim,
		XDim:               hd.XDim,
		MinX: b.MinX, MaxX: b.MaxX,
		MinY: b.MinY, MaxY: b.MaxY,
		MinZ: b.MinZ, MaxZ: b.MaxZ,
		MinQ: b.MinQ, MaxQ: b.MaxQ,
		SerializedData: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	return a, nil
}

// Header returns the container header described by the asset.
func (a *Asset) Header() qcloud.Header {
	return qcloud.Header{
		Count:              a.ParticleCount,
		DownsamplingFactor: a.DownsamplingFactor,
		TimeDim:            a.TimeDim,
		ZDim:               a.ZDim, YDim: a.YDim, XDim: a.XDim,
	}
}

// Bounds returns the value ranges stored in the asset.
func (a *Asset) Bounds() qcloud.Bounds {
	return qcloud.Bounds{
		a.MinX, a.MaxX, a.MinY, a.MaxY, a.MinZ, a.MaxZ, a.MinQ, a.MaxQ,
	}
}

func (a *Asset) data() ([]byte, error) {
	if a.SerializedData == "" {
		return nil, qcloud.FormatError(a.path, nil, "no serialized data in asset")
	}
	data, err := base64.StdEncoding.DecodeString(a.SerializedData)
	if err != nil {
		return nil, qcloud.FormatError(a.path, err, "corrupt serialized data")
	}
	return data, nil
}

// SizeMB returns the size of the decoded particle data in MiB.
func (a *Asset) SizeMB() float64 {
	n := base64.StdEncoding.DecodedLen(len(a.SerializedData))
	return float64(n) / (1024 * 1024)
}

// Particles decodes the particle records stored in the asset.
func (a *Asset) Particles() ([]qcloud.Particle, error) {
	data, err := a.data()
	if err != nil {
		return nil, err
	}

	if len(data)%qcloud.ParticleSize != 0 {
		return nil, qcloud.FormatError(a.path, nil,
			"serialized data is %d bytes, not a multiple of %d",
			len(data), qcloud.ParticleSize,
		)
	}
	count := len(data) / qcloud.ParticleSize
	if count != int(a.ParticleCount) {
		return nil, qcloud.FormatError(a.path, nil,
			"asset declares %d particles but holds %d", a.ParticleCount, count,
		)
	}

	ps := make([]qcloud.Particle, count)
	if err := binary.Read(bytes.NewReader(data), end, ps); err != nil {
		return nil, qcloud.FormatError(a.path, err, "cannot decode particles")
	}
	return ps, nil
}

// WriteAssetFile writes the asset to path as YAML.
func WriteAssetFile(path string, a *Asset) error {
	return writeAtomic(path, func(f *os.File) error {
		enc := yaml.NewEncoder(f)
		if err := enc.Encode(a); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadAssetFile reads an asset written by WriteAssetFile.
func ReadAssetFile(path string) (*Asset, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, qcloud.FormatError(path, err, "cannot read asset")
	}

	a := &Asset{}
	if err := yaml.Unmarshal(bs, a); err != nil {
		return nil, qcloud.FormatError(path, err, "cannot parse asset")
	}
	a.path = path
	return a, nil
}
