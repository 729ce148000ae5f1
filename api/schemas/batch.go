package schemas

import (
	"time"
)

// -- Batch Schemas --

// BatchStatus is the lifecycle state of a batch run.
type BatchStatus string

const (
	BatchScheduled BatchStatus = "scheduled"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// Progress tracks per-row accounting for a running batch. The counters are
// kept internally consistent: Processed == Succeeded + Failed, and
// Processed <= Total.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchSummary is the finalized accounting for a finished batch.
type BatchSummary struct {
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// FailureRecord captures one row that did not succeed, with enough state to
// drive retries. Attempt starts at 1 for the original failure and is
// incremented on each failed retry.
type FailureRecord struct {
	Row     any    `json:"row"`
	Profile string `json:"profile"`
	Error   string `json:"error"`
	Attempt int    `json:"attempt"`
}

// BatchConfig carries per-batch tuning supplied at scheduling time.
type BatchConfig struct {
	// RowDelay is an optional pause between rows, bounding load on the
	// target site. Zero disables pacing.
	RowDelay time.Duration `json:"row_delay"`
	// StopOnCaptcha aborts remaining rows once the row processor reports a
	// CAPTCHA wall rather than burning through the whole input set.
	StopOnCaptcha bool `json:"stop_on_captcha"`
}

// Batch is one scheduled run of input rows through form-fill-and-submit
// against a profile. Status only ever moves forward:
// scheduled -> running -> completed|failed.
type Batch struct {
	ID        string          `json:"id"`
	Profile   string          `json:"profile"`
	Config    BatchConfig     `json:"config"`
	InputRows []any           `json:"input_rows"`
	Status    BatchStatus     `json:"status"`
	Progress  Progress        `json:"progress"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Logs      []string        `json:"logs,omitempty"`
	Summary   *BatchSummary   `json:"summary,omitempty"`
	Failures  []FailureRecord `json:"failures,omitempty"`
	Retries   int             `json:"retries"`
}

// RetryPolicy bounds the retry engine. Defaults: 3 attempts, 1s delay.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

// DefaultRetryPolicy returns the policy applied when the caller supplies a
// zero value.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, RetryDelay: time.Second}
}

// -- Batch Lifecycle Events --

// EventType names a batch lifecycle event.
type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventBatchProgress  EventType = "batch_progress"
	EventBatchCompleted EventType = "batch_completed"
	EventBatchFinalized EventType = "batch_finalized"
)

// BatchEvent is the fire-and-forget notification emitted at every lifecycle
// transition. Progress and Summary are snapshot copies; listeners may retain
// them freely.
type BatchEvent struct {
	Type     EventType     `json:"type"`
	BatchID  string        `json:"batch_id"`
	Progress *Progress     `json:"progress,omitempty"`
	Summary  *BatchSummary `json:"summary,omitempty"`
}
