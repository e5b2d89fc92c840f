package trace

import "github.com/rs/xid"

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures admission, forwarding and drain decisions.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during one simulation run.
type SimulationTrace struct {
	RunID       string
	Config      TraceConfig
	Admissions  []AdmissionRecord
	Forwardings []ForwardingRecord
	Drains      []DrainRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording, tagged
// with a fresh run ID.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		RunID:       xid.New().String(),
		Config:      config,
		Admissions:  make([]AdmissionRecord, 0),
		Forwardings: make([]ForwardingRecord, 0),
		Drains:      make([]DrainRecord, 0),
	}
}

// Enabled reports whether records should be collected.
// Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordAdmission appends an admission decision record.
func (st *SimulationTrace) RecordAdmission(record AdmissionRecord) {
	st.Admissions = append(st.Admissions, record)
}

// RecordForwarding appends a forwarding decision record.
func (st *SimulationTrace) RecordForwarding(record ForwardingRecord) {
	st.Forwardings = append(st.Forwardings, record)
}

// RecordDrain appends a central-buffer drain decision record.
func (st *SimulationTrace) RecordDrain(record DrainRecord) {
	st.Drains = append(st.Drains, record)
}
