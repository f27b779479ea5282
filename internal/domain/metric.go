package domain

// EventMetric records per-event processing and storage latency.
// Buffered in memory and flushed in batches; best-effort durability.
type EventMetric struct {
	TxHash   string
	LogIndex uint
	Kind     EventKind

	// EventTimestamp is chain time (block timestamp) in Unix milliseconds.
	EventTimestamp int64

	ProcessingStart int64 // Unix milliseconds
	ProcessingEnd   int64
	StorageStart    int64
	StorageEnd      int64

	Success bool
	Error   string
}

// ProcessingLatencyMs is processing_end - processing_start.
func (m *EventMetric) ProcessingLatencyMs() int64 {
	return m.ProcessingEnd - m.ProcessingStart
}

// StorageLatencyMs is storage_end - storage_start.
func (m *EventMetric) StorageLatencyMs() int64 {
	return m.StorageEnd - m.StorageStart
}

// TotalLatencyMs is storage_end - event chain timestamp. It intentionally
// includes block propagation and queueing delay.
func (m *EventMetric) TotalLatencyMs() int64 {
	return m.StorageEnd - m.EventTimestamp
}

// IssueSeverity grades integrity findings.
type IssueSeverity string

const (
	SeverityInfo    IssueSeverity = "INFO"
	SeverityWarning IssueSeverity = "WARNING"
	SeverityError   IssueSeverity = "ERROR"
)

// IntegrityIssue is a single finding from an integrity check.
type IntegrityIssue struct {
	Severity      IssueSeverity `json:"severity"`
	Message       string        `json:"message"`
	AffectedCount int64         `json:"affected_count"`
}

// IntegrityCheckResult is one append-only audit row per check run.
type IntegrityCheckResult struct {
	CheckType string
	RunAt     int64 // Unix seconds
	Passed    bool
	Issues    []IntegrityIssue
	Details   string
}
