package leveling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChatSift/Social/internal/domain/shared"
)

func TestCumulativeXPFor_KnownValues(t *testing.T) {
	f := Formula{Base: 0, Multiplier: 2}

	tests := []struct {
		level int64
		want  int64
	}{
		{1, 0},
		{2, 2},
		{3, 6},
		{4, 12},
		{10, 90},
	}

	for _, tt := range tests {
		got, err := CumulativeXPFor(f, tt.level)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "level %d", tt.level)
	}
}

func TestCumulativeXPFor_InvalidArguments(t *testing.T) {
	_, err := CumulativeXPFor(Formula{Base: 10, Multiplier: 5}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = CumulativeXPFor(Formula{Base: 10, Multiplier: 0}, 3)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = LevelFor(Formula{Base: -1, Multiplier: 1}, 3)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestLevelFor_BoundaryExactness(t *testing.T) {
	formulas := []Formula{
		{Base: 0, Multiplier: 2},
		{Base: 1, Multiplier: 1},
		{Base: 100, Multiplier: 5},
		{Base: 7, Multiplier: 100},
		{Base: 100, Multiplier: 100},
	}

	for _, f := range formulas {
		for level := int64(1); level <= 500; level++ {
			required, err := CumulativeXPFor(f, level)
			require.NoError(t, err)

			got, err := LevelFor(f, required)
			require.NoError(t, err)
			assert.Equal(t, level, got, "formula %+v at exact boundary of level %d", f, level)

			got, err = LevelFor(f, required-1)
			require.NoError(t, err)
			assert.Equal(t, level-1, got, "formula %+v just below level %d", f, level)
		}
	}
}

func TestLevelFor_BelowBase(t *testing.T) {
	f := Formula{Base: 50, Multiplier: 3}

	for _, xp := range []int64{-10, 0, 49} {
		got, err := LevelFor(f, xp)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)
	}
}

func TestLevelFor_ZeroBaseStartsAtLevelOne(t *testing.T) {
	f := Formula{Base: 0, Multiplier: 2}

	got, err := LevelFor(f, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = LevelFor(f, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestLevelFor_HighXPDoesNotOverflow(t *testing.T) {
	f := Formula{Base: 0, Multiplier: 1}

	got, err := CumulativeXPFor(f, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)

	level, err := LevelFor(f, math.MaxInt64)
	require.NoError(t, err)
	assert.Greater(t, level, int64(4_000_000_000))
}
