// Package sim provides the discrete-step simulation engine for netsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - buffer.go: bounded FIFO with capacity-based admission control
//   - source.go: stochastic packet generator and arrival-rate estimate
//   - forwarding.go: round-robin, random and fullest-first forwarding policies
//   - engine.go: the step loop, central-buffer draining and drain-on-stop
//
// # Model
//
// Each step, every source generates a packet that is admission-tested into
// its own sub-buffer; after each source, the forwarding policy picks a
// sub-buffer whose head packet moves into the central buffer if it fits.
// Sources whose arrival-rate estimate does not exceed the transmission rate
// are "slow"; when the slow estimates of a step sum above the transmission
// rate, the central buffer transmits one packet.
//
// # Key Interfaces
//
//   - ForwardingPolicy: select the sub-buffer serviced next
//   - Observer: consume per-step Snapshots (Metrics is the built-in one)
//
// Decision tracing lives in sim/trace.
package sim
