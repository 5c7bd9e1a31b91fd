package models

import "time"

// Batch is a contiguous slice [Start, End) of the processed comment sequence.
type Batch struct {
	Index    int       `json:"index"`
	Start    int       `json:"start"`
	End      int       `json:"end"`
	Comments []Comment `json:"-"`
}

func (b Batch) Size() int {
	return b.End - b.Start
}

type BatchStatus string

const (
	BatchSucceeded BatchStatus = "succeeded"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

type BatchOutcome struct {
	Index    int           `json:"index"`
	Start    int           `json:"start"`
	Size     int           `json:"size"`
	Status   BatchStatus   `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type ProgressEvent struct {
	RunID            string        `json:"run_id"`
	BatchIndex       int           `json:"batch_index"`
	BatchesCompleted int           `json:"batches_completed"`
	BatchesTotal     int           `json:"batches_total"`
	RecordsCompleted int           `json:"records_completed"`
	RecordsTotal     int           `json:"records_total"`
	FailedBatches    int           `json:"failed_batches"`
	Elapsed          time.Duration `json:"elapsed"`
	ETA              time.Duration `json:"eta"`
}

type Run struct {
	ID         string           `json:"id"`
	Analyzer   string           `json:"analyzer"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []AnalysisResult `json:"results"`
	Ledger     []BatchOutcome   `json:"ledger"`
	CacheHits  int              `json:"cache_hits"`
}

// FailedBatches returns the ledger entries whose records were all marked failed.
func (r *Run) FailedBatches() []BatchOutcome {
	var failed []BatchOutcome
	for _, o := range r.Ledger {
		if o.Status == BatchFailed {
			failed = append(failed, o)
		}
	}
	return failed
}
