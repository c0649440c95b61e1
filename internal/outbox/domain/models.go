// Package domain contains the transactional outbox entry model and the
// event types delivered through it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the delivery state of an outbox entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Entry is one durable unit of post-commit work. It is written in the same
// transaction as the state change it describes and retained after reaching
// a terminal state for audit.
type Entry struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	AggregateID snowflake.ID   `gorm:"not null;index" json:"aggregate_id"`
	EventType   string         `gorm:"type:text;not null" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Status      Status         `gorm:"type:text;not null;default:'pending';index:ix_outbox_entries_status_created,priority:1" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"not null;default:5" json:"max_attempts"`
	LastError   *string        `gorm:"type:text" json:"last_error,omitempty"`
	ClaimedAt   *time.Time     `gorm:"" json:"claimed_at,omitempty"`
	ProcessedAt *time.Time     `gorm:"" json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_outbox_entries_status_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "outbox_entries" }

// Exhausted reports whether the entry has consumed its retry budget.
func (e Entry) Exhausted() bool {
	return e.Attempts >= e.MaxAttempts
}
