// Package trace provides decision-trace recording for forwarding-policy analysis.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// AdmissionRecord captures one packet offered by a source to its sub-buffer.
type AdmissionRecord struct {
	Step       int
	Source     int
	PacketSize int
	Fast       bool    // rate estimate exceeded the transmission rate
	Estimate   float64 // the source's arrival-rate estimate for this packet
	Admitted   bool
}

// Forwarding outcome reasons.
const (
	ReasonForwarded   = "forwarded"
	ReasonEmpty       = "empty"
	ReasonCentralFull = "central-full"
)

// ForwardingRecord captures one forwarding attempt toward the central buffer.
type ForwardingRecord struct {
	Step      int
	Source    int // pair index being processed when the attempt was made
	Candidate int // sub-buffer index chosen by the policy
	Policy    string
	Forwarded bool
	Reason    string // one of the Reason* constants
}

// DrainRecord captures the end-of-step central-buffer drain decision.
type DrainRecord struct {
	Step        int
	SlowRate    float64 // accumulated estimate of slow sources this step
	Transmitted bool
}
