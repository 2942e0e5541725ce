package leveling

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ChatSift/Social/internal/domain/shared"
)

// CumulativeXPFor returns the total XP needed to have reached level:
//
//	base + multiplier * level * (level - 1) / 2
//
// Results that do not fit in an int64 saturate at math.MaxInt64.
func CumulativeXPFor(f Formula, level int64) (int64, error) {
	if level < 1 {
		return 0, shared.NewDomainError("leveling", "CumulativeXPFor", shared.ErrInvalidArgument,
			fmt.Sprintf("level must be >= 1, got %d", level))
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	return cumulative(f, level), nil
}

// LevelFor returns the largest level whose cumulative requirement is met by
// xp. Level 0 has no requirement, so any xp below the base is level 0.
//
// The level is found by inverting the quadratic and then correcting the
// floating point estimate against CumulativeXPFor.
func LevelFor(f Formula, xp int64) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if xp < f.Base {
		return 0, nil
	}

	// multiplier * L * (L-1) / 2 <= xp - base
	d := float64(xp-f.Base) / float64(f.Multiplier)
	level := int64(math.Floor((1 + math.Sqrt(1+8*d)) / 2))
	if level < 1 {
		level = 1
	}

	for level > 1 && cumulative(f, level) > xp {
		level--
	}
	for {
		next := cumulative(f, level+1)
		if next > xp || next == math.MaxInt64 {
			break
		}
		level++
	}
	return level, nil
}

func cumulative(f Formula, level int64) int64 {
	n := uint64(level)
	// n*(n-1) is always even, so halve whichever factor is even first.
	a, b := n, n-1
	if a%2 == 0 {
		a /= 2
	} else {
		b /= 2
	}

	hi, tri := bits.Mul64(a, b)
	if hi != 0 || tri > math.MaxInt64 {
		return math.MaxInt64
	}
	hi, scaled := bits.Mul64(tri, uint64(f.Multiplier))
	if hi != 0 || scaled > math.MaxInt64 {
		return math.MaxInt64
	}
	sum, carry := bits.Add64(scaled, uint64(f.Base), 0)
	if carry != 0 || sum > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(sum)
}
