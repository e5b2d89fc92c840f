package sim

import "fmt"

// Packet is a unit of traffic. Its size is expressed in the same units as
// buffer capacity. Packets are values: moving one between buffers transfers
// ownership, there is no shared reference.
type Packet struct {
	Size int
}

func (p Packet) String() string {
	return fmt.Sprintf("pkt(%d)", p.Size)
}
