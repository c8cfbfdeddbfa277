package model

import "time"

// Job states reported by the backend queue.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

type AnalysisJob struct {
	ID              string    `json:"_id,omitempty"`
	TaskID          string    `json:"taskId,omitempty"`
	URL             string    `json:"url"`
	Email           string    `json:"email"`
	Status          string    `json:"status"`
	EmailStatus     string    `json:"emailStatus,omitempty"`
	EmailError      string    `json:"emailError,omitempty"`
	ReportDirectory string    `json:"reportDirectory,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

// Key identifies a job across page loads: taskId, falling back to _id.
func (j AnalysisJob) Key() string {
	if j.TaskID != "" {
		return j.TaskID
	}
	return j.ID
}

// Done reports whether the job reached a terminal state.
func (j AnalysisJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// ScanResult is the outcome of a quick scan. It is rendered once and not kept.
type ScanResult struct {
	URL             string   `json:"url"`
	Score           int      `json:"score"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	Email           string   `json:"email"`
}
