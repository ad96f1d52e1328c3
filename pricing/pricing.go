package pricing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultJitter is the largest relative move the simulator applies (0.5%).
const DefaultJitter = 0.005

// Source gives a current price for a holding bought at a given cost basis.
// A real quote feed can replace the simulator by implementing Source.
type Source interface {
	Price(avgPrice float64) float64
}

// Simulator perturbs the cost basis by a symmetric random factor.
type Simulator struct {
	jitter float64

	// lock guards rnd, *rand.Rand is not safe for concurrent use
	lock sync.Mutex
	rnd  *rand.Rand
}

// NewSimulator returns a Simulator seeded from the clock.
func NewSimulator(jitter float64) *Simulator {
	return NewSimulatorWithRand(jitter, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSimulatorWithRand returns a Simulator drawing from rnd.
func NewSimulatorWithRand(jitter float64, rnd *rand.Rand) *Simulator {
	if jitter < 0 {
		jitter = -jitter
	}
	return &Simulator{jitter: jitter, rnd: rnd}
}

// Price returns avgPrice * (1 + u), u uniform in [-jitter, +jitter], rounded to cents.
func (s *Simulator) Price(avgPrice float64) float64 {
	s.lock.Lock()
	u := (s.rnd.Float64()*2 - 1) * s.jitter
	s.lock.Unlock()
	return round2(avgPrice * (1 + u))
}

// Fixed reports the cost basis as the current price.
type Fixed struct{}

// Price returns avgPrice unchanged.
func (Fixed) Price(avgPrice float64) float64 {
	return round2(avgPrice)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(avgPrice float64) float64

func (f SourceFunc) Price(avgPrice float64) float64 {
	return f(avgPrice)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
