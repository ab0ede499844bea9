package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeGroupContemplated   JobType = "group_contemplated"
	JobTypeAmountMismatchAlert JobType = "amount_mismatch_alert"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background dispatch job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// GroupContemplatedJobPayload carries a contemplated group to the
// notification side: every member gets a completion notice, the winner an
// extra one.
type GroupContemplatedJobPayload struct {
	GroupID       uint   `json:"group_id"`
	GroupPublicID string `json:"group_public_id"`
	PlanID        uint   `json:"plan_id"`
	WinnerUserID  uint   `json:"winner_user_id"`
	MemberUserIDs []uint `json:"member_user_ids"`
}

// ToMap converts the payload to a map for storage
func (p GroupContemplatedJobPayload) ToMap() map[string]interface{} {
	memberIDs := make([]interface{}, 0, len(p.MemberUserIDs))
	for _, id := range p.MemberUserIDs {
		memberIDs = append(memberIDs, id)
	}
	return map[string]interface{}{
		"group_id":        p.GroupID,
		"group_public_id": p.GroupPublicID,
		"plan_id":         p.PlanID,
		"winner_user_id":  p.WinnerUserID,
		"member_user_ids": memberIDs,
	}
}

// GroupContemplatedJobPayloadFromMap creates a payload from a map
func GroupContemplatedJobPayloadFromMap(data map[string]interface{}) (*GroupContemplatedJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload GroupContemplatedJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AmountMismatchJobPayload carries an amount-mismatch alert for manual
// review by the admins.
type AmountMismatchJobPayload struct {
	OrderID       uint   `json:"order_id"`
	OrderPublicID string `json:"order_public_id"`
	UserID        uint   `json:"user_id"`
	AmountCents   int64  `json:"amount_cents"`
	ExpectedCents int64  `json:"expected_cents"`
}

// ToMap converts the payload to a map for storage
func (p AmountMismatchJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_id":        p.OrderID,
		"order_public_id": p.OrderPublicID,
		"user_id":         p.UserID,
		"amount_cents":    p.AmountCents,
		"expected_cents":  p.ExpectedCents,
	}
}

// AmountMismatchJobPayloadFromMap creates a payload from a map
func AmountMismatchJobPayloadFromMap(data map[string]interface{}) (*AmountMismatchJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AmountMismatchJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
