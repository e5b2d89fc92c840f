package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)

	if summary.TotalAdmissions != 0 || summary.ForwardAttempts != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.CandidateCounts == nil {
		t.Error("expected non-nil candidate map")
	}
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalAdmissions != 0 || summary.AdmittedCount != 0 || summary.RejectedCount != 0 {
		t.Error("expected 0 admissions")
	}
	if summary.UniqueCandidates != 0 || len(summary.CandidateCounts) != 0 {
		t.Error("expected no candidates")
	}
	if summary.TransmittedCount != 0 {
		t.Error("expected 0 transmissions")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordAdmission(AdmissionRecord{Step: 1, Source: 0, Fast: true, Admitted: true})
	st.RecordAdmission(AdmissionRecord{Step: 1, Source: 1, Fast: false, Admitted: false})
	st.RecordAdmission(AdmissionRecord{Step: 2, Source: 0, Fast: true, Admitted: true})
	st.RecordForwarding(ForwardingRecord{Step: 1, Candidate: 0, Forwarded: true, Reason: ReasonForwarded})
	st.RecordForwarding(ForwardingRecord{Step: 1, Candidate: 0, Reason: ReasonEmpty})
	st.RecordForwarding(ForwardingRecord{Step: 2, Candidate: 1, Reason: ReasonCentralFull})
	st.RecordDrain(DrainRecord{Step: 1, Transmitted: true})
	st.RecordDrain(DrainRecord{Step: 2})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.TotalAdmissions != 3 || summary.AdmittedCount != 2 || summary.RejectedCount != 1 {
		t.Errorf("admissions: got %+v", summary)
	}
	if summary.FastCount != 2 {
		t.Errorf("expected 2 fast, got %d", summary.FastCount)
	}
	if summary.ForwardAttempts != 3 || summary.ForwardedCount != 1 {
		t.Errorf("forwardings: got attempts=%d forwarded=%d", summary.ForwardAttempts, summary.ForwardedCount)
	}
	if summary.EmptyCandidates != 1 || summary.BlockedByCentral != 1 {
		t.Errorf("expected 1 empty and 1 blocked, got %d and %d", summary.EmptyCandidates, summary.BlockedByCentral)
	}
	if summary.CandidateCounts[0] != 2 || summary.CandidateCounts[1] != 1 || summary.UniqueCandidates != 2 {
		t.Errorf("candidate distribution: got %v", summary.CandidateCounts)
	}
	if summary.TransmittedCount != 1 {
		t.Errorf("expected 1 transmission, got %d", summary.TransmittedCount)
	}
}
