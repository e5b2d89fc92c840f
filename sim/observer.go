package sim

// Snapshot is an immutable view of engine state taken at a step boundary.
// Slices are freshly allocated per snapshot and never alias engine state.
type Snapshot struct {
	Step                       int
	State                      State
	CentralOccupancyFraction   float64
	PerSourceGenerated         []int
	PerSourceDropped           []int
	PerBufferOccupancyFraction []float64

	Forwarded      int // packets moved from a sub-buffer into the central buffer
	Transmitted    int // packets drained out of the central buffer
	DrainDiscarded int // packets that could never fit the central buffer while draining
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.PerSourceGenerated = append([]int(nil), s.PerSourceGenerated...)
	s.PerSourceDropped = append([]int(nil), s.PerSourceDropped...)
	s.PerBufferOccupancyFraction = append([]float64(nil), s.PerBufferOccupancyFraction...)
	return s
}

// TotalGenerated sums PerSourceGenerated.
func (s Snapshot) TotalGenerated() int {
	total := 0
	for _, n := range s.PerSourceGenerated {
		total += n
	}
	return total
}

// TotalDropped sums PerSourceDropped.
func (s Snapshot) TotalDropped() int {
	total := 0
	for _, n := range s.PerSourceDropped {
		total += n
	}
	return total
}

// Observer consumes snapshots. Observe is called on the engine goroutine once
// per completed step and once more after draining; it must return quickly.
type Observer interface {
	Observe(snap Snapshot)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Snapshot)

// Observe implements Observer.
func (f ObserverFunc) Observe(snap Snapshot) { f(snap) }
