package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/greatplr/membersync/internal/pkg/webhook"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeWebhookEvent JobType = "webhook_event"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusDiscarded  JobStatus = "discarded"
)

// Job represents a background job
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

// WebhookEventJobPayload carries one normalized webhook event through the
// queue. The installation is referenced by id and resolved again at
// processing time; it may have been deleted since enqueue.
type WebhookEventJobPayload struct {
	InstallationID uint                    `json:"installation_id"`
	EventName      string                  `json:"event_name"`
	ClientIP       string                  `json:"client_ip"`
	Event          *webhook.CanonicalEvent `json:"event"`
}

// ToMap converts the payload to a map for storage
func (p WebhookEventJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"installation_id": p.InstallationID,
		"event_name":      p.EventName,
		"client_ip":       p.ClientIP,
		"event":           p.Event,
	}
}

// WebhookEventJobPayloadFromMap creates a payload from a stored job map
func WebhookEventJobPayloadFromMap(data map[string]interface{}) (*WebhookEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload WebhookEventJobPayload
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

// MarkAsDiscarded updates the job status to discarded
func (j *Job) MarkAsDiscarded(reason string) {
	now := time.Now()
	j.Status = JobStatusDiscarded
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = reason
}
