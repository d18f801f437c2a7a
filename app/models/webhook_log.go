package models

import "time"

const (
	WebhookStatusReceived  = "received"
	WebhookStatusQueued    = "queued"
	WebhookStatusProcessed = "processed"
	WebhookStatusIgnored   = "ignored"
	WebhookStatusFailed    = "failed"
	WebhookStatusError     = "error"
)

// WebhookLog is an append-only record of every inbound webhook attempt and
// its outcome. Entries are never updated or deleted by the service.
type WebhookLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventType string    `gorm:"type:varchar(100);index" json:"event_type"`
	Status    string    `gorm:"type:varchar(20);index" json:"status"`
	Payload   string    `gorm:"type:longtext" json:"payload"`
	Message   string    `gorm:"type:text" json:"message"`
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WebhookLog) TableName() string {
	return "amember_webhook_logs"
}
