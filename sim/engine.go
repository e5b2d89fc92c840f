// sim/engine.go
package sim

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netsim-lab/netsim/sim/trace"
)

// State is the engine lifecycle stage: Idle -> Running -> Draining -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithObserver registers an observer. May be given more than once; observers
// are notified in registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithStepDelay paces the Running loop with a fixed pause between steps.
func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) { e.stepDelay = d }
}

// WithTrace records admission, forwarding and drain decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(e *Engine) { e.trace = st }
}

// Engine owns the sources, their sub-buffers, the central buffer and the
// forwarding policy, and runs the discrete-step loop.
//
// All simulation state is mutated by the goroutine running Start. Other
// goroutines may only call RequestStop, IsRunning, State and Snapshot.
type Engine struct {
	cfg        Config
	sources    []*Source // sources[i] feeds subBuffers[i] for the engine's lifetime
	subBuffers []*Buffer
	central    *Buffer
	policy     ForwardingPolicy

	cursor         int // round-robin cursor, advanced once per step
	processedSteps int
	forwarded      int
	transmitted    int
	drainDiscarded int

	state         atomic.Int32
	stopRequested atomic.Bool
	last          atomic.Pointer[Snapshot]

	observers []Observer
	stepDelay time.Duration
	trace     *trace.SimulationTrace
}

// NewEngine validates cfg and builds an Idle engine.
// Returns a *ConfigurationError if cfg is invalid.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyRoundRobin
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	setup := rng.ForSubsystem(SubsystemSetup)

	e := &Engine{
		cfg:        cfg,
		sources:    make([]*Source, cfg.SubBufferCount),
		subBuffers: make([]*Buffer, cfg.SubBufferCount),
		central:    NewBuffer(cfg.CentralCapacity),
		policy:     NewForwardingPolicy(cfg.Policy, rng.ForSubsystem(SubsystemPolicy)),
	}
	for i := 0; i < cfg.SubBufferCount; i++ {
		rate, capacity := cfg.ArrivalRate, cfg.SubBufferCapacity
		if cfg.RandomizeSources {
			lo := math.Min(1, cfg.ArrivalRate)
			rate = lo + setup.Float64()*(cfg.ArrivalRate-lo)
			capacity = 1 + setup.IntN(cfg.SubBufferCapacity)
		}
		e.sources[i] = NewSource(rate, cfg.MaxPacketSize, rng.ForSubsystem(SubsystemSource(i)))
		e.subBuffers[i] = NewBuffer(capacity)
		logrus.Debugf("source %d: rate=%.3f sub-buffer capacity=%d", i, rate, capacity)
	}
	for _, opt := range opts {
		opt(e)
	}

	snap := e.snapshot()
	e.last.Store(&snap)
	return e, nil
}

// Start runs the engine to completion: Running steps until the target
// packet count is reached or a stop is requested, then Draining, then
// Stopped. It blocks until Stopped. Cancelling ctx acts like RequestStop:
// the in-flight step completes and all buffers are drained.
//
// The only error is ErrAlreadyStarted; packet loss is reported through
// snapshots.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	logrus.Infof("Starting simulation: %d sources, policy=%s, target=%d packets, transmission rate=%.3f",
		len(e.sources), e.policy.Name(), e.cfg.TargetPacketCount, e.cfg.TransmissionRate)

	for e.processedSteps < e.cfg.TargetPacketCount {
		if e.stopRequested.Load() || ctx.Err() != nil {
			logrus.Infof("[step %07d] Stop requested", e.processedSteps)
			break
		}
		e.step()
		if e.stepDelay > 0 && e.processedSteps < e.cfg.TargetPacketCount {
			e.pause(ctx)
		}
	}

	e.state.Store(int32(StateDraining))
	logrus.Infof("[step %07d] Draining %d queued packets", e.processedSteps, e.queuedPackets())
	e.drain()

	e.state.Store(int32(StateStopped))
	e.notify()
	logrus.Infof("[step %07d] Simulation stopped: forwarded=%d transmitted=%d drain-discarded=%d",
		e.processedSteps, e.forwarded, e.transmitted, e.drainDiscarded)
	return nil
}

// RequestStop asks the loop to stop at the next step boundary.
// Safe to call from any goroutine, any number of times.
func (e *Engine) RequestStop() {
	if !e.stopRequested.Swap(true) {
		logrus.Debug("stop requested")
	}
}

// IsRunning reports whether the engine is in the Running state.
func (e *Engine) IsRunning() bool {
	return e.State() == StateRunning
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Snapshot returns a copy of the most recently published snapshot. Before
// Start this is the initial (empty) state.
func (e *Engine) Snapshot() Snapshot {
	return e.last.Load().Clone()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// step runs one Running step over every source/sub-buffer pair, then the
// central-buffer drain decision, then notifies observers.
func (e *Engine) step() {
	step := e.processedSteps + 1
	slowRate := 0.0

	for i, src := range e.sources {
		pkt := src.GeneratePacket()
		estimate := src.EstimateArrivalRate()
		fast := estimate > e.cfg.TransmissionRate
		if !fast {
			slowRate += estimate
		}

		admitted := e.subBuffers[i].TryAdmit(pkt)
		if admitted {
			src.RecordAdmit()
		} else {
			src.RecordDrop()
			logrus.Tracef("[step %07d] source %d dropped %v (sub-buffer %v)", step, i, pkt, e.subBuffers[i])
		}
		if e.trace.Enabled() {
			e.trace.RecordAdmission(trace.AdmissionRecord{
				Step:       step,
				Source:     i,
				PacketSize: pkt.Size,
				Fast:       fast,
				Estimate:   estimate,
				Admitted:   admitted,
			})
		}

		e.forward(step, i)
	}
	e.cursor++

	transmitted := false
	if slowRate > e.cfg.TransmissionRate {
		if _, ok := e.central.DequeueHead(); ok {
			e.transmitted++
			transmitted = true
		}
	}
	if e.trace.Enabled() {
		e.trace.RecordDrain(trace.DrainRecord{Step: step, SlowRate: slowRate, Transmitted: transmitted})
	}

	e.processedSteps = step
	logrus.Debugf("[step %07d] central=%v slowRate=%.3f transmitted=%t", step, e.central, slowRate, transmitted)
	e.notify()
}

// forward asks the policy for a candidate and moves its head packet into the
// central buffer if it fits.
func (e *Engine) forward(step, source int) {
	j := e.policy.SelectIndex(e.subBuffers, e.cursor)
	sub := e.subBuffers[j]

	reason := trace.ReasonForwarded
	head, ok := sub.PeekHead()
	switch {
	case !ok:
		reason = trace.ReasonEmpty
	case !e.central.TryAdmit(head):
		reason = trace.ReasonCentralFull
	default:
		sub.DequeueHead()
		e.forwarded++
	}

	if e.trace.Enabled() {
		e.trace.RecordForwarding(trace.ForwardingRecord{
			Step:      step,
			Source:    source,
			Candidate: j,
			Policy:    e.policy.Name(),
			Forwarded: reason == trace.ReasonForwarded,
			Reason:    reason,
		})
	}
}

// drain empties every buffer: the central buffer first, then each sub-buffer
// packet by packet through the central buffer, which is flushed after each
// transfer.
func (e *Engine) drain() {
	e.flushCentral()
	for i, sub := range e.subBuffers {
		for {
			pkt, ok := sub.DequeueHead()
			if !ok {
				break
			}
			// The central buffer is empty here, so only an oversized packet is refused.
			if !e.central.TryAdmit(pkt) {
				e.drainDiscarded++
				logrus.Warnf("[drain] sub-buffer %d: %v exceeds central capacity %d, discarded", i, pkt, e.central.Capacity())
				continue
			}
			e.forwarded++
			e.flushCentral()
		}
	}
}

func (e *Engine) flushCentral() {
	for {
		if _, ok := e.central.DequeueHead(); !ok {
			return
		}
		e.transmitted++
	}
}

func (e *Engine) pause(ctx context.Context) {
	timer := time.NewTimer(e.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) queuedPackets() int {
	n := e.central.Len()
	for _, b := range e.subBuffers {
		n += b.Len()
	}
	return n
}

// notify publishes a fresh snapshot and hands it to every observer.
func (e *Engine) notify() {
	snap := e.snapshot()
	published := snap.Clone()
	e.last.Store(&published)
	for _, o := range e.observers {
		o.Observe(snap)
	}
}

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		Step:                       e.processedSteps,
		State:                      e.State(),
		CentralOccupancyFraction:   e.central.OccupancyFraction(),
		PerSourceGenerated:         make([]int, len(e.sources)),
		PerSourceDropped:           make([]int, len(e.sources)),
		PerBufferOccupancyFraction: make([]float64, len(e.subBuffers)),
		Forwarded:                  e.forwarded,
		Transmitted:                e.transmitted,
		DrainDiscarded:             e.drainDiscarded,
	}
	for i, src := range e.sources {
		snap.PerSourceGenerated[i] = src.Generated
		snap.PerSourceDropped[i] = src.Dropped
	}
	for i, b := range e.subBuffers {
		snap.PerBufferOccupancyFraction[i] = b.OccupancyFraction()
	}
	return snap
}
