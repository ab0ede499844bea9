package models

import "time"

// ProcessedEvent is the idempotency marker for payment provider webhooks,
// keyed by the canonical event key (event type + provider payment id +
// status). The unique-constraint-backed insert on EventKey is the single
// serialization point that keeps retried or replayed deliveries from running
// their side effects twice.
type ProcessedEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventKey        string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_key"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PaymentID       string     `gorm:"type:varchar(100);not null;index" json:"payment_id"`
	PaymentStatus   string     `gorm:"type:varchar(50);not null" json:"payment_status"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Completed reports whether the event's side effects already ran to the end.
// A marker row that exists but never completed belongs to a delivery that
// failed mid-pipeline; the provider's retry is allowed to run it again.
func (e *ProcessedEvent) Completed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
