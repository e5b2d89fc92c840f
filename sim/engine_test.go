package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsim-lab/netsim/sim/trace"
)

// recorder collects every snapshot an engine publishes.
type recorder struct {
	snaps []Snapshot
}

func (r *recorder) Observe(s Snapshot) { r.snaps = append(r.snaps, s) }

func (r *recorder) running() []Snapshot {
	var out []Snapshot
	for _, s := range r.snaps {
		if s.State == StateRunning {
			out = append(out, s)
		}
	}
	return out
}

func mustEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

// assertDrained checks every buffer is empty.
func assertDrained(t *testing.T, e *Engine) {
	t.Helper()
	for i, b := range e.subBuffers {
		assert.True(t, b.IsEmpty(), "sub-buffer %d not drained: %v", i, b)
	}
	assert.True(t, e.central.IsEmpty(), "central buffer not drained: %v", e.central)
}

func TestNewEngine_InvalidConfig_ReturnsConfigurationError(t *testing.T) {
	cfg := validConfig()
	cfg.SubBufferCount = 0
	cfg.TransmissionRate = 0

	e, err := NewEngine(cfg)

	assert.Nil(t, e)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Violations(), 2)
}

func TestNewEngine_PairsSourcesWithSubBuffers(t *testing.T) {
	e := mustEngine(t, validConfig())

	assert.Len(t, e.sources, 3)
	assert.Len(t, e.subBuffers, 3)
	assert.Equal(t, 20, e.central.Capacity())
	for i := range e.sources {
		assert.Equal(t, 2.0, e.sources[i].ArrivalRate)
		assert.Equal(t, 10, e.subBuffers[i].Capacity())
	}
	assert.Equal(t, StateIdle, e.State())
	assert.False(t, e.IsRunning())
}

func TestEngine_Start_TerminatesAfterTargetSteps(t *testing.T) {
	// GIVEN a valid configuration with a 25-packet target
	rec := &recorder{}
	e := mustEngine(t, validConfig(), WithObserver(rec))

	// WHEN the engine runs
	require.NoError(t, e.Start(context.Background()))

	// THEN exactly 25 Running snapshots plus one final Stopped snapshot were published
	require.Len(t, rec.snaps, 26)
	for i, s := range rec.running() {
		assert.Equal(t, i+1, s.Step)
	}
	final := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, StateStopped, final.State)
	assert.Equal(t, 25, final.Step)
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, final, e.Snapshot())
	assertDrained(t, e)
}

func TestEngine_Start_Twice_ReturnsErrAlreadyStarted(t *testing.T) {
	e := mustEngine(t, validConfig())
	require.NoError(t, e.Start(context.Background()))

	err := e.Start(context.Background())

	assert.True(t, errors.Is(err, ErrAlreadyStarted))
}

func TestEngine_FastSources_CentralFillsAndNeverDrainsWhileRunning(t *testing.T) {
	// GIVEN one unit-packet source whose estimate always exceeds a tiny transmission rate
	cfg := Config{
		ArrivalRate:       1,
		MaxPacketSize:     1,
		SubBufferCount:    1,
		SubBufferCapacity: 10,
		CentralCapacity:   5,
		TransmissionRate:  1e-9,
		TargetPacketCount: 20,
		Policy:            PolicyRoundRobin,
		Seed:              3,
	}
	rec := &recorder{}
	e := mustEngine(t, cfg, WithObserver(rec))

	// WHEN it runs
	require.NoError(t, e.Start(context.Background()))

	// THEN the first 5 packets reach the central buffer, the next 10 wait in the
	// sub-buffer and the last 5 are dropped; nothing is transmitted while running
	running := rec.running()
	require.Len(t, running, 20)
	lastRunning := running[19]
	assert.Equal(t, []int{20}, lastRunning.PerSourceGenerated)
	assert.Equal(t, []int{5}, lastRunning.PerSourceDropped)
	assert.Equal(t, 5, lastRunning.Forwarded)
	assert.Equal(t, 0, lastRunning.Transmitted)
	assert.Equal(t, 1.0, lastRunning.CentralOccupancyFraction)
	assert.Equal(t, []float64{1.0}, lastRunning.PerBufferOccupancyFraction)

	// AND draining moves and transmits everything left
	final := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, 15, final.Forwarded)
	assert.Equal(t, 15, final.Transmitted)
	assert.Equal(t, 0, final.DrainDiscarded)
	assert.Equal(t, 0.0, final.CentralOccupancyFraction)
	assert.Equal(t, []float64{0}, final.PerBufferOccupancyFraction)
	assertDrained(t, e)
}

func TestEngine_CounterConservation(t *testing.T) {
	// GIVEN small sub-buffers so that drops happen
	cfg := Config{
		ArrivalRate:       2,
		MaxPacketSize:     6,
		SubBufferCount:    4,
		SubBufferCapacity: 8,
		CentralCapacity:   12,
		TransmissionRate:  1.5,
		TargetPacketCount: 200,
		Policy:            PolicyRandom,
		Seed:              99,
	}
	rec := &recorder{}
	e := mustEngine(t, cfg, WithObserver(rec))

	require.NoError(t, e.Start(context.Background()))

	// THEN for every source generated == dropped + admitted
	totalAdmitted := 0
	for i, src := range e.sources {
		assert.Equal(t, 200, src.Generated, "source %d", i)
		assert.Equal(t, src.Generated, src.Dropped+src.Admitted, "source %d", i)
		totalAdmitted += src.Admitted
	}
	assert.Greater(t, rec.snaps[len(rec.snaps)-1].TotalDropped(), 0, "expected some loss with 8-unit sub-buffers")

	// AND every admitted packet was either forwarded or discarded at drain,
	// and every forwarded packet was transmitted
	final := e.Snapshot()
	assert.Equal(t, totalAdmitted, final.Forwarded+final.DrainDiscarded)
	assert.Equal(t, final.Forwarded, final.Transmitted)
	assertDrained(t, e)
}

func TestEngine_CapacityInvariant_HoldsAtEveryStep(t *testing.T) {
	for _, policy := range ValidForwardingPolicyNames() {
		t.Run(policy, func(t *testing.T) {
			cfg := Config{
				ArrivalRate:       3,
				MaxPacketSize:     5,
				SubBufferCount:    3,
				SubBufferCapacity: 7,
				CentralCapacity:   9,
				TransmissionRate:  2,
				TargetPacketCount: 150,
				Policy:            policy,
				Seed:              17,
			}
			var e *Engine
			checks := 0
			check := ObserverFunc(func(s Snapshot) {
				// runs on the engine goroutine between steps
				for i, b := range e.subBuffers {
					sum := 0
					for _, p := range b.queue {
						sum += p.Size
					}
					assert.LessOrEqual(t, sum, b.Capacity(), "sub-buffer %d at step %d", i, s.Step)
					assert.LessOrEqual(t, s.PerBufferOccupancyFraction[i], 1.0)
				}
				assert.LessOrEqual(t, e.central.Occupancy(), e.central.Capacity(), "central at step %d", s.Step)
				checks++
			})
			e = mustEngine(t, cfg, WithObserver(check))

			require.NoError(t, e.Start(context.Background()))

			assert.Equal(t, 151, checks)
		})
	}
}

func TestEngine_DrainDecision_MatchesSlowAccumulator(t *testing.T) {
	// GIVEN many sources whose estimates straddle the transmission rate
	cfg := Config{
		ArrivalRate:       1,
		MaxPacketSize:     2,
		SubBufferCount:    20,
		SubBufferCapacity: 50,
		CentralCapacity:   100,
		TransmissionRate:  5,
		TargetPacketCount: 50,
		Policy:            PolicyRoundRobin,
		Seed:              8,
	}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	rec := &recorder{}
	e := mustEngine(t, cfg, WithTrace(st), WithObserver(rec))

	require.NoError(t, e.Start(context.Background()))

	// THEN each source is fast iff its estimate exceeds the rate, and the
	// per-step slow accumulator is the sum of the slow estimates
	require.Len(t, st.Admissions, 20*50)
	require.Len(t, st.Drains, 50)
	slow := make(map[int]float64)
	for _, a := range st.Admissions {
		assert.Equal(t, a.Estimate > cfg.TransmissionRate, a.Fast)
		if !a.Fast {
			slow[a.Step] += a.Estimate
		}
	}
	for _, d := range st.Drains {
		assert.InDelta(t, slow[d.Step], d.SlowRate, 1e-9, "step %d", d.Step)
		if d.Transmitted {
			assert.Greater(t, d.SlowRate, cfg.TransmissionRate)
		}
	}

	// AND twenty slow-leaning sources keep the central buffer draining
	running := rec.running()
	assert.GreaterOrEqual(t, running[len(running)-1].Transmitted, 40)
}

func TestEngine_RoundRobin_CursorAdvancesOncePerStep(t *testing.T) {
	// GIVEN 3 pairs under round-robin
	cfg := validConfig()
	cfg.TargetPacketCount = 7
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	e := mustEngine(t, cfg, WithTrace(st))

	require.NoError(t, e.Start(context.Background()))

	// THEN every forwarding attempt of step s targets sub-buffer (s-1) mod 3,
	// once per pair
	require.Len(t, st.Forwardings, 3*7)
	for _, f := range st.Forwardings {
		assert.Equal(t, (f.Step-1)%3, f.Candidate, "step %d source %d", f.Step, f.Source)
		assert.Equal(t, PolicyRoundRobin, f.Policy)
	}
	summary := trace.Summarize(st)
	assert.Equal(t, map[int]int{0: 9, 1: 6, 2: 6}, summary.CandidateCounts)
}

func TestEngine_DrainDiscardsPacketsLargerThanCentral(t *testing.T) {
	// GIVEN packets up to size 10 but a central buffer of 3
	cfg := Config{
		ArrivalRate:       1,
		MaxPacketSize:     10,
		SubBufferCount:    2,
		SubBufferCapacity: 40,
		CentralCapacity:   3,
		TransmissionRate:  1e-9,
		TargetPacketCount: 30,
		Policy:            PolicyFullestFirst,
		Seed:              5,
	}
	e := mustEngine(t, cfg)

	require.NoError(t, e.Start(context.Background()))

	// THEN oversized packets are discarded at drain and every buffer ends empty
	final := e.Snapshot()
	assert.Greater(t, final.DrainDiscarded, 0)
	assert.Equal(t, final.Forwarded, final.Transmitted)
	assertDrained(t, e)
}

func TestEngine_RequestStop_DrainsAfterInFlightStep(t *testing.T) {
	// GIVEN an engine whose observer requests a stop at step 3
	cfg := validConfig()
	cfg.TargetPacketCount = 1000
	var e *Engine
	rec := &recorder{}
	stopper := ObserverFunc(func(s Snapshot) {
		if s.Step == 3 && s.State == StateRunning {
			assert.True(t, e.IsRunning())
			e.RequestStop()
			e.RequestStop() // idempotent
		}
	})
	e = mustEngine(t, cfg, WithObserver(stopper), WithObserver(rec))

	// WHEN it runs
	require.NoError(t, e.Start(context.Background()))

	// THEN the engine completed step 3, drained and stopped
	assert.Len(t, rec.running(), 3)
	final := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, StateStopped, final.State)
	assert.Equal(t, 3, final.Step)
	assert.Equal(t, []int{3, 3, 3}, final.PerSourceGenerated)
	assertDrained(t, e)
}

func TestEngine_RequestStopBeforeStart_RunsNoSteps(t *testing.T) {
	rec := &recorder{}
	e := mustEngine(t, validConfig(), WithObserver(rec))
	e.RequestStop()

	require.NoError(t, e.Start(context.Background()))

	require.Len(t, rec.snaps, 1)
	assert.Equal(t, StateStopped, rec.snaps[0].State)
	assert.Equal(t, 0, rec.snaps[0].Step)
}

func TestEngine_ContextCancel_InterruptsStepDelay(t *testing.T) {
	// GIVEN an hour-long step delay and a context cancelled after step 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}
	canceller := ObserverFunc(func(s Snapshot) {
		if s.Step == 1 {
			cancel()
		}
	})
	e := mustEngine(t, validConfig(), WithStepDelay(time.Hour), WithObserver(canceller), WithObserver(rec))

	// WHEN it runs
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	// THEN it stops promptly after draining
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not honor context cancellation during step delay")
	}
	assert.Len(t, rec.running(), 1)
	assert.Equal(t, StateStopped, e.State())
	assertDrained(t, e)
}

func TestEngine_SameSeed_IdenticalSnapshots(t *testing.T) {
	for _, policy := range ValidForwardingPolicyNames() {
		t.Run(policy, func(t *testing.T) {
			cfg := validConfig()
			cfg.Policy = policy
			cfg.TargetPacketCount = 60
			cfg.RandomizeSources = true
			rec1, rec2 := &recorder{}, &recorder{}

			require.NoError(t, mustEngine(t, cfg, WithObserver(rec1)).Start(context.Background()))
			require.NoError(t, mustEngine(t, cfg, WithObserver(rec2)).Start(context.Background()))

			assert.Equal(t, rec1.snaps, rec2.snaps)
		})
	}
}

func TestEngine_RandomizeSources_DrawsWithinBounds(t *testing.T) {
	cfg := validConfig()
	cfg.SubBufferCount = 30
	cfg.ArrivalRate = 6
	cfg.SubBufferCapacity = 4
	cfg.RandomizeSources = true

	e := mustEngine(t, cfg)

	for i := range e.sources {
		assert.GreaterOrEqual(t, e.sources[i].ArrivalRate, 1.0)
		assert.LessOrEqual(t, e.sources[i].ArrivalRate, 6.0)
		assert.GreaterOrEqual(t, e.subBuffers[i].Capacity(), 1)
		assert.LessOrEqual(t, e.subBuffers[i].Capacity(), 4)
	}
}

func TestEngine_RandomizeSources_SmallArrivalRate(t *testing.T) {
	// an arrival rate below 1 leaves nothing to draw from and is used as-is
	cfg := validConfig()
	cfg.ArrivalRate = 0.5
	cfg.RandomizeSources = true

	e := mustEngine(t, cfg)

	for i := range e.sources {
		assert.Equal(t, 0.5, e.sources[i].ArrivalRate)
	}
}

func TestEngine_Snapshot_DoesNotAliasEngineState(t *testing.T) {
	rec := &recorder{}
	e := mustEngine(t, validConfig(), WithObserver(rec))
	require.NoError(t, e.Start(context.Background()))

	snap := e.Snapshot()
	snap.PerSourceGenerated[0] = -1
	snap.PerBufferOccupancyFraction[0] = 42

	assert.Equal(t, 25, e.Snapshot().PerSourceGenerated[0])
	assert.Equal(t, 0.0, e.Snapshot().PerBufferOccupancyFraction[0])
	assert.Equal(t, 25, e.sources[0].Generated)
}

func TestEngine_SnapshotBeforeStart_IsIdle(t *testing.T) {
	e := mustEngine(t, validConfig())

	snap := e.Snapshot()

	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 0, snap.Step)
	assert.Equal(t, []int{0, 0, 0}, snap.PerSourceGenerated)
}

func TestEngine_EmptyPolicyDefaultsToRoundRobin(t *testing.T) {
	cfg := validConfig()
	cfg.Policy = ""

	e := mustEngine(t, cfg)

	assert.Equal(t, PolicyRoundRobin, e.Config().Policy)
	assert.Equal(t, PolicyRoundRobin, e.policy.Name())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}
