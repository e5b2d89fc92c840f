package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAdmissions  int
	AdmittedCount    int
	RejectedCount    int
	FastCount        int
	ForwardAttempts  int
	ForwardedCount   int
	EmptyCandidates  int         // attempts on an empty sub-buffer
	BlockedByCentral int         // attempts refused by a full central buffer (backpressure)
	TransmittedCount int         // steps where the central buffer drained a packet
	CandidateCounts  map[int]int // sub-buffer index → times selected
	UniqueCandidates int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		CandidateCounts: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalAdmissions = len(st.Admissions)
	for _, a := range st.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
		} else {
			summary.RejectedCount++
		}
		if a.Fast {
			summary.FastCount++
		}
	}

	summary.ForwardAttempts = len(st.Forwardings)
	for _, f := range st.Forwardings {
		summary.CandidateCounts[f.Candidate]++
		switch {
		case f.Forwarded:
			summary.ForwardedCount++
		case f.Reason == ReasonEmpty:
			summary.EmptyCandidates++
		case f.Reason == ReasonCentralFull:
			summary.BlockedByCentral++
		}
	}
	summary.UniqueCandidates = len(summary.CandidateCounts)

	for _, d := range st.Drains {
		if d.Transmitted {
			summary.TransmittedCount++
		}
	}

	return summary
}
