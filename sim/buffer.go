// Implements the bounded FIFO Buffer used for both the per-source sub-buffers
// and the shared central buffer.

package sim

import (
	"fmt"
	"strings"
)

// Buffer is a bounded FIFO of packets with capacity-based admission control.
// The sum of queued packet sizes never exceeds Capacity(); TryAdmit is the
// only way in and DequeueHead the only way out.
type Buffer struct {
	capacity  int
	occupancy int      // sum of queued packet sizes
	queue     []Packet // FIFO, head at index 0
}

// NewBuffer creates an empty buffer. Capacity must be positive; Config.Validate
// guarantees this for every buffer the engine builds.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewBuffer: capacity must be > 0, got %d", capacity))
	}
	return &Buffer{capacity: capacity}
}

// CanAdmit reports whether p would fit without violating capacity.
func (b *Buffer) CanAdmit(p Packet) bool {
	return b.occupancy+p.Size <= b.capacity
}

// TryAdmit appends p to the tail if it fits. On rejection the buffer is left
// unchanged. There is no partial admission.
func (b *Buffer) TryAdmit(p Packet) bool {
	if !b.CanAdmit(p) {
		return false
	}
	b.queue = append(b.queue, p)
	b.occupancy += p.Size
	return true
}

// PeekHead returns the oldest packet without removing it.
// The bool is false if the buffer is empty.
func (b *Buffer) PeekHead() (Packet, bool) {
	if len(b.queue) == 0 {
		return Packet{}, false
	}
	return b.queue[0], true
}

// DequeueHead removes and returns the oldest packet.
// The bool is false if the buffer is empty.
func (b *Buffer) DequeueHead() (Packet, bool) {
	if len(b.queue) == 0 {
		return Packet{}, false
	}
	p := b.queue[0]
	b.queue[0] = Packet{}
	b.queue = b.queue[1:]
	b.occupancy -= p.Size
	return p, true
}

// OccupancyFraction returns occupancy/capacity in [0,1], or 0 if empty.
func (b *Buffer) OccupancyFraction() float64 {
	if len(b.queue) == 0 {
		return 0
	}
	return float64(b.occupancy) / float64(b.capacity)
}

// Capacity returns the configured capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Occupancy returns the sum of queued packet sizes.
func (b *Buffer) Occupancy() int { return b.occupancy }

// Len returns the number of queued packets.
func (b *Buffer) Len() int { return len(b.queue) }

// IsEmpty reports whether no packet is queued.
func (b *Buffer) IsEmpty() bool { return len(b.queue) == 0 }

func (b *Buffer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d [", b.occupancy, b.capacity)
	for i, p := range b.queue {
		sb.WriteString(fmt.Sprint(p.Size))
		if i < len(b.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
