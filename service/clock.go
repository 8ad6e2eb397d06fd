package service

import (
	"math/rand/v2"
	"time"
)

type systemClock struct{}

// NewSystemClock returns a Clock reading the wall clock in UTC
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type systemRandom struct{}

// NewSystemRandom returns a RandomSource backed by the runtime's concurrency-safe generator
func NewSystemRandom() RandomSource {
	return systemRandom{}
}

func (systemRandom) Float64() float64 {
	return rand.Float64()
}

func (systemRandom) IntN(n int) int {
	return rand.IntN(n)
}

// seededRandom is a deterministic source used to deal duel blackjack hands.
// Not safe for concurrent use.
type seededRandom struct {
	r *rand.Rand
}

func newSeededRandom(seed int64) *seededRandom {
	return &seededRandom{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (s *seededRandom) Float64() float64 {
	return s.r.Float64()
}

func (s *seededRandom) IntN(n int) int {
	return s.r.IntN(n)
}
