package sim

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is a stochastic packet generator feeding exactly one sub-buffer.
// Counters only ever grow; Generated == Dropped + Admitted at step boundaries.
type Source struct {
	ArrivalRate   float64 // exponential rate parameter (lambda)
	MaxPacketSize int

	Generated int
	Dropped   int
	Admitted  int

	rng      *rand.Rand
	interval distuv.Exponential
}

// NewSource creates a source drawing from rng. arrivalRate and maxPacketSize
// must be positive.
func NewSource(arrivalRate float64, maxPacketSize int, rng *rand.Rand) *Source {
	if arrivalRate <= 0 || maxPacketSize <= 0 {
		panic(fmt.Sprintf("NewSource: invalid parameters rate=%v maxSize=%d", arrivalRate, maxPacketSize))
	}
	return &Source{
		ArrivalRate:   arrivalRate,
		MaxPacketSize: maxPacketSize,
		rng:           rng,
		interval:      distuv.Exponential{Rate: arrivalRate, Src: rng},
	}
}

// GeneratePacket produces a packet with size uniform in [1, MaxPacketSize].
func (s *Source) GeneratePacket() Packet {
	s.Generated++
	return Packet{Size: 1 + s.rng.IntN(s.MaxPacketSize)}
}

// EstimateArrivalRate samples an exponential inter-arrival interval and
// returns its reciprocal: a short interval means a high instantaneous rate.
func (s *Source) EstimateArrivalRate() float64 {
	return 1 / s.interval.Rand()
}

// RecordDrop counts a packet rejected by the source's sub-buffer.
func (s *Source) RecordDrop() { s.Dropped++ }

// RecordAdmit counts a packet accepted by the source's sub-buffer.
func (s *Source) RecordAdmit() { s.Admitted++ }

// LossRatio returns Dropped/Generated, or 0 before the first packet.
func (s *Source) LossRatio() float64 {
	if s.Generated == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.Generated)
}
