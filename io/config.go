package io

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/qcloud"
)

const (
	ExamplePreprocessFile = `[Preprocess]

#######################
# Required Parameters #
#######################

# HDF5/NetCDF file containing the 4-D scalar field.
Input = dp_3d_clean.001.nc
# Location of the preprocessed output.
Output = preprocessed_particles.bytes

#######################
# Optional Parameters #
#######################

# Name of the top-level array holding q[t][z][y][x]. Default is q.
# Dataset = q

# Output format, one of [ Binary | Asset ]. Binary writes the fixed-layout
# particle container. Asset writes a YAML document holding the same records
# plus their value ranges. Default is Binary.
# Format = Binary

# Spatial downsampling stride applied to z, y and x. Must be in [1, 16].
# StepSize = 8

# Values outside [MinThreshold, MaxThreshold] are discarded.
# MinThreshold = 0.006
# MaxThreshold = 0.00975

# Cells which hold this value (or anything below -999000) are treated as
# missing data.
# MissingValue = -999999

# Drops the (0, 0, 0) cell of every timestep.
# ExcludeOrigin = true

# Preprocessing stops once this many particles have been kept. The remaining
# cells are silently dropped.
# MaxParticles = 500000

# Shape of the source array. These are not read from the file, so they must
# be changed by hand if the input changes shape.
# TimeDim = 11
# ZDim = 41
# YDim = 412
# XDim = 412

# LogFile = log.out
# ProfileFile = prof.out`

	ExamplePlaybackFile = `[Playback]

#######################
# Required Parameters #
#######################

# Where particles come from. One of [ Container | Asset | Generator ].
# Container and Asset read Input, Generator builds a synthetic plume.
Source = Container
Input = preprocessed_particles.bytes

#######################
# Optional Parameters #
#######################

# Records decoded per frame while loading.
# ParticlesPerFrame = 50000
# Records per buffer upload, and how many of them may go up in one frame.
# UploadChunk = 1000
# UploadPerFrame = 200000

# Seconds between timesteps while playing.
# TimestepInterval = 1.0
# AutoPlay = true

# Seconds to wait for the loader before playback gives up. Must be in [5, 30].
# LoadTimeout = 10

# FrameRate = 60
# Seconds the "Dataset ready!" notice stays up.
# HideDelay = 0.5

# Generator only: the shape of the synthetic volume, the stride and seed.
# TimeDim = 11
# ZDim = 41
# YDim = 96
# XDim = 96
# StepSize = 2
# Seed = 1

# LogFile = log.out

# Variants are the mutually exclusive colour schemes. Order decides the key
# (1, 2, 3, ...) that selects them. Without any Variant sections the palette
# is red, blue, yellow.
#
# [Variant "ozone"]
# Color = ff0000
# Order = 0`
)

type SharedConfig struct {
	// Required
	Input, Output string
	// Optional
	LogFile, ProfileFile string
}

func (con *SharedConfig) ValidInput() bool {
	return con.Input != ""
}
func (con *SharedConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *SharedConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SharedConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

type PreprocessConfig struct {
	SharedConfig

	// Optional
	Dataset, Format string
	StepSize int
	MinThreshold, MaxThreshold, MissingValue float64
	ExcludeOrigin bool
	MaxParticles int
	TimeDim, ZDim, YDim, XDim int
}

type PreprocessWrapper struct {
	Preprocess PreprocessConfig
}

func DefaultPreprocessWrapper() *PreprocessWrapper {
	con := PreprocessConfig{
		Dataset: "q",
		Format: "Binary",
		StepSize: 8,
		MinThreshold: 0.006,
		MaxThreshold: 0.00975,
		MissingValue: -999999,
		ExcludeOrigin: true,
		MaxParticles: 500000,
		TimeDim: qcloud.DefaultDims.T,
		ZDim: qcloud.DefaultDims.Z,
		YDim: qcloud.DefaultDims.Y,
		XDim: qcloud.DefaultDims.X,
	}
	return &PreprocessWrapper{con}
}

func (con *PreprocessConfig) ValidDataset() bool {
	return con.Dataset != ""
}
func (con *PreprocessConfig) ValidFormat() bool {
	return con.Format == "Binary" || con.Format == "Asset"
}
func (con *PreprocessConfig) ValidStepSize() bool {
	return con.StepSize >= 1 && con.StepSize <= 16
}
func (con *PreprocessConfig) ValidThresholds() bool {
	return con.MinThreshold <= con.MaxThreshold
}
func (con *PreprocessConfig) ValidMaxParticles() bool {
	return con.MaxParticles >= 0
}
func (con *PreprocessConfig) ValidDims() bool {
	return con.Dims().Valid()
}

// Dims returns the configured shape of the source array.
func (con *PreprocessConfig) Dims() qcloud.Dims {
	return qcloud.Dims{T: con.TimeDim, Z: con.ZDim, Y: con.YDim, X: con.XDim}
}

// Check returns a descriptive error for the first invalid value.
func (con *PreprocessConfig) Check() error {
	con.Format = strings.Trim(con.Format, " ")
	switch {
	case !con.ValidInput():
		return fmt.Errorf("Invalid/non-existent 'Input' value.")
	case !con.ValidOutput():
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	case !con.ValidDataset():
		return fmt.Errorf("Invalid 'Dataset' value.")
	case !con.ValidFormat():
		return fmt.Errorf(
			"'Format' must be one of [Binary | Asset]. '%s' is not "+
				"recognized.", con.Format,
		)
	case !con.ValidStepSize():
		return fmt.Errorf(
			"'StepSize' must be in range [1, 16], but is %d.", con.StepSize,
		)
	case !con.ValidThresholds():
		return fmt.Errorf(
			"'MinThreshold' %g is larger than 'MaxThreshold' %g.",
			con.MinThreshold, con.MaxThreshold,
		)
	case !con.ValidMaxParticles():
		return fmt.Errorf("'MaxParticles' may not be negative.")
	case !con.ValidDims():
		return fmt.Errorf(
			"'TimeDim', 'ZDim', 'YDim' and 'XDim' must all be positive.",
		)
	}
	return nil
}

// ReadPreprocessConfig reads and checks a [Preprocess] config file.
func ReadPreprocessConfig(fname string) (*PreprocessConfig, error) {
	wrap := DefaultPreprocessWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	if err := wrap.Preprocess.Check(); err != nil {
		return nil, err
	}
	return &wrap.Preprocess, nil
}

type PlaybackConfig struct {
	// Required
	Source, Input string

	// Optional
	ParticlesPerFrame, UploadChunk, UploadPerFrame int
	TimestepInterval float64
	AutoPlay bool
	LoadTimeout float64
	FrameRate int
	HideDelay float64

	TimeDim, ZDim, YDim, XDim int
	StepSize int
	Seed int64

	LogFile string
}

type VariantConfig struct {
	// Required
	Color string

	// Optional
	Order int

	// Optional, "undocumented"
	Name string
}

func (v *VariantConfig) CheckInit(name string) error {
	v.Color = strings.TrimPrefix(strings.Trim(v.Color, " "), "#")
	if len(v.Color) != 6 {
		return fmt.Errorf(
			"Color of Variant '%s' must be a six digit hex value, but is '%s'.",
			name, v.Color,
		)
	}
	for _, c := range strings.ToLower(v.Color) {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return fmt.Errorf(
				"Color of Variant '%s' is not hex: '%s'.", name, v.Color,
			)
		}
	}
	v.Name = name
	return nil
}

// Hex returns the colour in #rrggbb form.
func (v *VariantConfig) Hex() string { return "#" + v.Color }

type PlaybackWrapper struct {
	Playback PlaybackConfig
	Variant  map[string]*VariantConfig
}

func DefaultPlaybackWrapper() *PlaybackWrapper {
	con := PlaybackConfig{
		Source: "Container",
		ParticlesPerFrame: 50000,
		UploadChunk: 1000,
		UploadPerFrame: 200000,
		TimestepInterval: 1.0,
		AutoPlay: true,
		LoadTimeout: 10,
		FrameRate: 60,
		HideDelay: 0.5,
		TimeDim: 11, ZDim: 41, YDim: 96, XDim: 96,
		StepSize: 2,
		Seed: 1,
	}
	return &PlaybackWrapper{Playback: con}
}

// DefaultVariants is the palette used when a config names no variants.
func DefaultVariants() []VariantConfig {
	return []VariantConfig{
		{Color: "ff0000", Order: 0, Name: "red"},
		{Color: "0000ff", Order: 1, Name: "blue"},
		{Color: "ffff00", Order: 2, Name: "yellow"},
	}
}

func (con *PlaybackConfig) ValidSource() bool {
	switch con.Source {
	case "Container", "Asset", "Generator":
		return true
	}
	return false
}
func (con *PlaybackConfig) ValidInput() bool {
	return con.Source == "Generator" || con.Input != ""
}
func (con *PlaybackConfig) ValidChunks() bool {
	return con.ParticlesPerFrame > 0 && con.UploadChunk > 0 &&
		con.UploadPerFrame >= con.UploadChunk
}
func (con *PlaybackConfig) ValidTimestepInterval() bool {
	return con.TimestepInterval > 0
}
func (con *PlaybackConfig) ValidLoadTimeout() bool {
	return con.LoadTimeout >= 5 && con.LoadTimeout <= 30
}
func (con *PlaybackConfig) ValidFrameRate() bool {
	return con.FrameRate > 0
}
func (con *PlaybackConfig) ValidHideDelay() bool {
	return con.HideDelay >= 0
}
func (con *PlaybackConfig) ValidGenerator() bool {
	return con.Source != "Generator" ||
		(con.Dims().Valid() && con.StepSize >= 1)
}
func (con *PlaybackConfig) ValidLogFile() bool {
	return con.LogFile != ""
}

// Dims returns the generator's volume shape.
func (con *PlaybackConfig) Dims() qcloud.Dims {
	return qcloud.Dims{T: con.TimeDim, Z: con.ZDim, Y: con.YDim, X: con.XDim}
}

// Check returns a descriptive error for the first invalid value.
func (con *PlaybackConfig) Check() error {
	con.Source = strings.Trim(con.Source, " ")
	switch {
	case !con.ValidSource():
		return fmt.Errorf(
			"'Source' must be one of [Container | Asset | Generator]. "+
				"'%s' is not recognized.", con.Source,
		)
	case !con.ValidInput():
		return fmt.Errorf("Invalid/non-existent 'Input' value.")
	case !con.ValidChunks():
		return fmt.Errorf(
			"'ParticlesPerFrame' and 'UploadChunk' must be positive and " +
				"'UploadPerFrame' must be at least 'UploadChunk'.",
		)
	case !con.ValidTimestepInterval():
		return fmt.Errorf("'TimestepInterval' must be positive.")
	case !con.ValidLoadTimeout():
		return fmt.Errorf(
			"'LoadTimeout' must be in range [5, 30], but is %g.",
			con.LoadTimeout,
		)
	case !con.ValidFrameRate():
		return fmt.Errorf("'FrameRate' must be positive.")
	case !con.ValidHideDelay():
		return fmt.Errorf("'HideDelay' may not be negative.")
	case !con.ValidGenerator():
		return fmt.Errorf(
			"Generator dimensions and 'StepSize' must all be positive.",
		)
	}
	return nil
}

// ReadPlaybackConfig reads and checks a [Playback] config file along with
// its [Variant] sections. Variants are returned sorted by Order, then name.
func ReadPlaybackConfig(fname string) (*PlaybackConfig, []VariantConfig, error) {
	wrap := DefaultPlaybackWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, nil, err
	}
	if err := wrap.Playback.Check(); err != nil {
		return nil, nil, err
	}

	if len(wrap.Variant) == 0 {
		return &wrap.Playback, DefaultVariants(), nil
	}

	vs := []VariantConfig{}
	for name, v := range wrap.Variant {
		if err := v.CheckInit(name); err != nil {
			return nil, nil, err
		}
		vs = append(vs, *v)
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Order != vs[j].Order {
			return vs[i].Order < vs[j].Order
		}
		return vs[i].Name < vs[j].Name
	})

	return &wrap.Playback, vs, nil
}
