package rx

import (
	"math"
	"math/rand"
)

const (
	DefaultBearingFrom = math.Pi / 4
	DefaultBearingTo   = 5 * math.Pi / 4
)

// BearingSource provides the bearing of a reading.
type BearingSource interface {
	Bearing() float64
}

// RandomBearing draws bearings uniformly from the sector [From, To).
//
// This is a placeholder: the radar does not measure the angle of arrival yet, so the bearing
// carries no information about the target. Replace it with a real angle measurement when the
// hardware provides one.
type RandomBearing struct {
	From float64
	To   float64
	rnd  *rand.Rand
}

// NewRandomBearing returns a random bearing source for the given sector, seeded with the given seed.
func NewRandomBearing(from, to float64, seed int64) *RandomBearing {
	return &RandomBearing{
		From: from,
		To:   to,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

func (b *RandomBearing) Bearing() float64 {
	return b.From + b.rnd.Float64()*(b.To-b.From)
}

// FixedBearing always returns the same bearing.
type FixedBearing float64

func (b FixedBearing) Bearing() float64 {
	return float64(b)
}
