package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/qcloud"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestExampleConfigsParse(t *testing.T) {
	con, err := ReadPreprocessConfig(writeConfig(t, ExamplePreprocessFile))
	require.NoError(t, err)
	assert.Equal(t, "dp_3d_clean.001.nc", con.Input)
	assert.Equal(t, "q", con.Dataset)
	assert.Equal(t, 8, con.StepSize)
	assert.Equal(t, 500000, con.MaxParticles)
	assert.True(t, con.ExcludeOrigin)
	assert.Equal(t, qcloud.DefaultDims, con.Dims())

	pcon, vs, err := ReadPlaybackConfig(writeConfig(t, ExamplePlaybackFile))
	require.NoError(t, err)
	assert.Equal(t, "Container", pcon.Source)
	assert.Equal(t, 50000, pcon.ParticlesPerFrame)
	assert.Equal(t, 10.0, pcon.LoadTimeout)
	assert.Equal(t, DefaultVariants(), vs)
}

func TestPreprocessConfigOverrides(t *testing.T) {
	con, err := ReadPreprocessConfig(writeConfig(t, `[Preprocess]
Input = in.nc
Output = out.yaml
Format = Asset
StepSize = 2
MinThreshold = 0.1
MaxThreshold = 0.2
ExcludeOrigin = false
TimeDim = 3
`))
	require.NoError(t, err)
	assert.Equal(t, "Asset", con.Format)
	assert.Equal(t, 2, con.StepSize)
	assert.Equal(t, 0.1, con.MinThreshold)
	assert.False(t, con.ExcludeOrigin)
	assert.Equal(t, qcloud.Dims{T: 3, Z: 41, Y: 412, X: 412}, con.Dims())
}

func TestPreprocessConfigInvalid(t *testing.T) {
	table := []string{
		"[Preprocess]\nOutput = out\n",
		"[Preprocess]\nInput = in\n",
		"[Preprocess]\nInput = in\nOutput = out\nStepSize = 0\n",
		"[Preprocess]\nInput = in\nOutput = out\nStepSize = 17\n",
		"[Preprocess]\nInput = in\nOutput = out\nFormat = Json\n",
		"[Preprocess]\nInput = in\nOutput = out\nMinThreshold = 2\nMaxThreshold = 1\n",
		"[Preprocess]\nInput = in\nOutput = out\nMaxParticles = -1\n",
		"[Preprocess]\nInput = in\nOutput = out\nZDim = 0\n",
		"[Preprocess]\nInput = in\nOutput = out\nUnknown = 1\n",
	}

	for i, text := range table {
		_, err := ReadPreprocessConfig(writeConfig(t, text))
		assert.Error(t, err, "%d) %q", i, text)
	}
}

func TestPlaybackVariants(t *testing.T) {
	con, vs, err := ReadPlaybackConfig(writeConfig(t, `[Playback]
Source = Generator
LoadTimeout = 5

[Variant "so2"]
Color = 00ff00
Order = 1

[Variant "no2"]
Color = "#ff8800"
Order = 0
`))
	require.NoError(t, err)
	assert.Equal(t, "Generator", con.Source)
	require.Len(t, vs, 2)
	assert.Equal(t, "no2", vs[0].Name)
	assert.Equal(t, "#ff8800", vs[0].Hex())
	assert.Equal(t, "so2", vs[1].Name)
}

func TestPlaybackConfigInvalid(t *testing.T) {
	table := []string{
		"[Playback]\nSource = Video\nInput = a\n",
		"[Playback]\nSource = Container\n",
		"[Playback]\nInput = a\nLoadTimeout = 1\n",
		"[Playback]\nInput = a\nLoadTimeout = 31\n",
		"[Playback]\nInput = a\nUploadChunk = 10\nUploadPerFrame = 5\n",
		"[Playback]\nInput = a\nTimestepInterval = 0\n",
		"[Playback]\nSource = Generator\nStepSize = 0\n",
		"[Playback]\nInput = a\n[Variant \"x\"]\nColor = red\n",
	}

	for i, text := range table {
		_, _, err := ReadPlaybackConfig(writeConfig(t, text))
		assert.Error(t, err, "%d) %q", i, text)
	}
}
