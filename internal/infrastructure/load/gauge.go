// Package load supplies the system load signal feeding admission
// backpressure.
package load

import (
	"math"
	"sync/atomic"

	"github.com/rlgprojects/admission/internal/domain/service"
)

var _ service.LoadGauge = (*AtomicGauge)(nil)

// AtomicGauge is a process-local load gauge fed by an external reporter,
// typically a scheduler hook or a sidecar scraping host metrics. Reads are
// lock-free; the admission hot path calls Current on every request.
type AtomicGauge struct {
	bits atomic.Uint64
}

// NewAtomicGauge creates a gauge reading 0 until first set.
func NewAtomicGauge() *AtomicGauge {
	return &AtomicGauge{}
}

// Set records the current load, clamped to [0,1].
func (g *AtomicGauge) Set(load float64) {
	if math.IsNaN(load) || load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}
	g.bits.Store(math.Float64bits(load))
}

// Current returns the last recorded load.
func (g *AtomicGauge) Current() float64 {
	return math.Float64frombits(g.bits.Load())
}
