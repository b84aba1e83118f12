// services/bonus.go
package services

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

// MaxBonusPercent is the upper bound (inclusive) of a settlement bonus draw.
const MaxBonusPercent = 100

// BonusSource draws the bonus percentage for a successful settlement,
// uniformly from 0..MaxBonusPercent.
type BonusSource interface {
	Percent() int
}

// RandomBonus draws from a PCG generator. The zero value is not usable.
type RandomBonus struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomBonus seeds from the runtime's entropy.
func NewRandomBonus() *RandomBonus {
	return NewSeededBonus(rand.Uint64(), rand.Uint64())
}

// NewSeededBonus gives a reproducible sequence of draws.
func NewSeededBonus(seed1, seed2 uint64) *RandomBonus {
	return &RandomBonus{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (b *RandomBonus) Percent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.IntN(MaxBonusPercent + 1)
}

// FixedBonus always returns the same percentage.
type FixedBonus int

func (f FixedBonus) Percent() int { return int(f) }

// BonusFor returns stake*percent/100 rounded half away from zero. percent is
// clamped to 0..MaxBonusPercent, so the bonus never exceeds the stake.
func BonusFor(stake int64, percent int) int64 {
	if stake <= 0 || percent <= 0 {
		return 0
	}
	percent = min(percent, MaxBonusPercent)
	return decimal.NewFromInt(stake).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
