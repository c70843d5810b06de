package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/qcloud/io"
)

func TestSelectorExclusive(t *testing.T) {
	s, err := NewSelector(3)
	require.NoError(t, err)
	assert.Equal(t, State{-1, 3}, s.State())

	notified := []State{}
	s.Subscribe(func(st State) { notified = append(notified, st) })

	st, err := s.Select(1)
	require.NoError(t, err)
	assert.Equal(t, State{1, 3}, st)
	assert.Equal(t, 1, s.Active())

	_, err = s.Select(1)
	require.NoError(t, err)
	assert.Len(t, notified, 1, "reselecting must not notify")

	st, err = s.Deactivate(1)
	assert.ErrorIs(t, err, ErrSoleVariant)
	assert.Equal(t, 1, st.Active)

	st, err = s.Deactivate(2)
	assert.NoError(t, err)
	assert.Equal(t, 1, st.Active)

	_, err = s.Select(2)
	require.NoError(t, err)
	assert.Equal(t, []State{{1, 3}, {2, 3}}, notified)

	s.Reset()
	assert.Equal(t, -1, s.Active())
	assert.Len(t, notified, 3)
	s.Reset()
	assert.Len(t, notified, 3)
}

func TestSelectorRange(t *testing.T) {
	_, err := NewSelector(0)
	assert.Error(t, err)

	s, err := NewSelector(2)
	require.NoError(t, err)
	_, err = s.Select(2)
	assert.Error(t, err)
	_, err = s.Select(-1)
	assert.Error(t, err)
	_, err = s.Deactivate(5)
	assert.Error(t, err)
	assert.Equal(t, -1, s.Active())
}

func TestPalette(t *testing.T) {
	p, err := NewPalette(io.DefaultVariants())
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue", "yellow"}, p.Names)
	assert.Equal(t, 3, p.Len())

	assert.Equal(t, "#ff0000", p.Color(0).Hex())
	assert.Equal(t, White, p.Color(9))

	tests := []struct {
		ks  []int
		hex string
	}{
		{[]int{}, "#ffffff"},
		{[]int{0}, "#ff0000"},
		{[]int{2}, "#ffff00"},
		{[]int{0, 1}, "#00ff00"},
		{[]int{0, 7}, "#ff0000"},
	}
	for i, test := range tests {
		assert.Equal(t, test.hex, p.Mix(test.ks).Hex(), "%d)", i)
	}

	_, err = NewPalette(nil)
	assert.Error(t, err)
	_, err = NewPalette([]io.VariantConfig{{Color: "zzzzzz", Name: "bad"}})
	assert.Error(t, err)
}
