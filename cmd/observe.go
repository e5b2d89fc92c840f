package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	sim "github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/trace"
)

// progressLogger reports remaining packets, central utilization and loss
// every `every` steps, and once when the engine stops.
type progressLogger struct {
	target int
	every  int
}

func newProgressLogger(target, every int) *progressLogger {
	return &progressLogger{target: target, every: every}
}

// Observe implements sim.Observer.
func (p *progressLogger) Observe(snap sim.Snapshot) {
	if snap.State == sim.StateRunning && snap.Step%p.every != 0 {
		return
	}
	loss := 0.0
	if gen := snap.TotalGenerated(); gen > 0 {
		loss = float64(snap.TotalDropped()) / float64(gen) * 100
	}
	logrus.WithFields(logrus.Fields{
		"state":     snap.State.String(),
		"remaining": max(0, p.target-snap.Step),
		"central":   fmt.Sprintf("%.1f%%", snap.CentralOccupancyFraction*100),
		"loss":      fmt.Sprintf("%.1f%%", loss),
	}).Infof("[step %07d] progress", snap.Step)
}

// printTraceSummary writes the decision-trace summary after the metrics report.
func printTraceSummary(w io.Writer, st *trace.SimulationTrace) {
	s := trace.Summarize(st)
	fmt.Fprintf(w, "=== Decision Trace (run %s) ===\n", st.RunID)
	fmt.Fprintf(w, "Admissions           : %d (admitted %d, rejected %d, fast %d)\n",
		s.TotalAdmissions, s.AdmittedCount, s.RejectedCount, s.FastCount)
	fmt.Fprintf(w, "Forward Attempts     : %d (forwarded %d, empty %d, blocked by central %d)\n",
		s.ForwardAttempts, s.ForwardedCount, s.EmptyCandidates, s.BlockedByCentral)
	fmt.Fprintf(w, "Central Transmissions: %d\n", s.TransmittedCount)

	candidates := make([]int, 0, len(s.CandidateCounts))
	for idx := range s.CandidateCounts {
		candidates = append(candidates, idx)
	}
	sort.Ints(candidates)
	for _, idx := range candidates {
		fmt.Fprintf(w, "  Sub-buffer %-3d     : selected %d times\n", idx, s.CandidateCounts[idx])
	}
}
