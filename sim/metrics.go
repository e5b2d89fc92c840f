// Tracks run-level statistics derived from engine snapshots: packet loss,
// central-buffer utilization and progress toward the packet target.

package sim

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics is an Observer aggregating statistics over a single run
// for final reporting.
type Metrics struct {
	TargetPackets    int       // configured target packet count
	CentralSamples   []float64 // central occupancy fraction after each Running step
	SubBufferSamples [][]float64
	Last             Snapshot // most recent snapshot seen
}

// NewMetrics creates a Metrics observer for a run of targetPackets steps.
func NewMetrics(targetPackets int) *Metrics {
	return &Metrics{TargetPackets: targetPackets}
}

// Observe implements Observer.
func (m *Metrics) Observe(snap Snapshot) {
	if snap.State == StateRunning {
		m.CentralSamples = append(m.CentralSamples, snap.CentralOccupancyFraction)
		if m.SubBufferSamples == nil {
			m.SubBufferSamples = make([][]float64, len(snap.PerBufferOccupancyFraction))
		}
		for i, f := range snap.PerBufferOccupancyFraction {
			m.SubBufferSamples[i] = append(m.SubBufferSamples[i], f)
		}
	}
	m.Last = snap
}

// LossPercent returns dropped/generated across all sources, in percent.
func (m *Metrics) LossPercent() float64 {
	generated := m.Last.TotalGenerated()
	if generated == 0 {
		return 0
	}
	return float64(m.Last.TotalDropped()) / float64(generated) * 100
}

// RemainingPackets returns how many Running steps are left before the target.
func (m *Metrics) RemainingPackets() int {
	return max(0, m.TargetPackets-len(m.CentralSamples))
}

// MeanCentralUtilization returns the mean central occupancy fraction over
// Running steps.
func (m *Metrics) MeanCentralUtilization() float64 {
	if len(m.CentralSamples) == 0 {
		return 0
	}
	return stat.Mean(m.CentralSamples, nil)
}

// CentralUtilizationStdDev returns the sample standard deviation of the
// central occupancy fraction; 0 with fewer than two samples.
func (m *Metrics) CentralUtilizationStdDev() float64 {
	if len(m.CentralSamples) < 2 {
		return 0
	}
	return stat.StdDev(m.CentralSamples, nil)
}

// PeakCentralUtilization returns the highest central occupancy fraction seen.
func (m *Metrics) PeakCentralUtilization() float64 {
	if len(m.CentralSamples) == 0 {
		return 0
	}
	return floats.Max(m.CentralSamples)
}

// MeanSubBufferUtilization returns the mean occupancy fraction of sub-buffer i.
func (m *Metrics) MeanSubBufferUtilization(i int) float64 {
	if i < 0 || i >= len(m.SubBufferSamples) || len(m.SubBufferSamples[i]) == 0 {
		return 0
	}
	return stat.Mean(m.SubBufferSamples[i], nil)
}

// Print writes the end-of-run report.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Steps                : %d / %d\n", len(m.CentralSamples), m.TargetPackets)
	fmt.Fprintf(w, "Packets Generated    : %d\n", m.Last.TotalGenerated())
	fmt.Fprintf(w, "Packets Dropped      : %d (%.1f%%)\n", m.Last.TotalDropped(), m.LossPercent())
	fmt.Fprintf(w, "Packets Forwarded    : %d\n", m.Last.Forwarded)
	fmt.Fprintf(w, "Packets Transmitted  : %d\n", m.Last.Transmitted)
	if m.Last.DrainDiscarded > 0 {
		fmt.Fprintf(w, "Discarded at Drain   : %d\n", m.Last.DrainDiscarded)
	}
	fmt.Fprintf(w, "Central Utilization  : mean %.1f%%, stddev %.1f%%, peak %.1f%%\n",
		m.MeanCentralUtilization()*100, m.CentralUtilizationStdDev()*100, m.PeakCentralUtilization()*100)
	for i := range m.Last.PerSourceGenerated {
		gen, drop := m.Last.PerSourceGenerated[i], m.Last.PerSourceDropped[i]
		loss := 0.0
		if gen > 0 {
			loss = float64(drop) / float64(gen) * 100
		}
		fmt.Fprintf(w, "  Source %-3d         : generated %d, dropped %d (%.1f%%), mean sub-buffer fill %.1f%%\n",
			i, gen, drop, loss, m.MeanSubBufferUtilization(i)*100)
	}
}
