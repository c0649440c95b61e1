// Package domain contains the order aggregate: persistence models, the
// status machine, and the purchase service contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/qalam/internal/catalog/domain"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// CanTransition reports whether the status machine allows moving to next.
// Completed is terminal except for an explicit refund; failed, cancelled and
// refunded are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted ||
			next == StatusFailed || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	case StatusCompleted:
		return next == StatusRefunded
	default:
		return false
	}
}

// SyncStatus tracks whether an interactive item's external record exists.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Order is a financial record; it is never hard-deleted. Amounts are minor
// currency units and Total is always recomputed server-side.
type Order struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderNumber   string       `gorm:"type:text;not null;uniqueIndex" json:"order_number"`
	UserID        string       `gorm:"type:text;not null;index" json:"user_id"`
	Status        Status       `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Subtotal      int64        `gorm:"not null;default:0" json:"subtotal"`
	Discount      int64        `gorm:"not null;default:0" json:"discount"`
	Tax           int64        `gorm:"not null;default:0" json:"tax"`
	Total         int64        `gorm:"not null;default:0" json:"total"`
	Currency      string       `gorm:"type:text;not null;default:'USD'" json:"currency"`
	CouponCode    *string      `gorm:"type:text" json:"coupon_code,omitempty"`
	PaymentMethod *string      `gorm:"type:text" json:"payment_method,omitempty"`
	PaymentID     *string      `gorm:"type:text" json:"payment_id,omitempty"`
	PaidAt        *time.Time   `gorm:"" json:"paid_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []OrderItem `gorm:"-" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// OrderItem is a line on an order. Title and price are snapshots taken at
// purchase time, immune to later catalog changes. RecordID and SyncStatus
// are meaningful only for interactive templates.
type OrderItem struct {
	ID            snowflake.ID               `gorm:"primaryKey" json:"id"`
	OrderID       snowflake.ID               `gorm:"not null;index" json:"order_id"`
	TemplateID    snowflake.ID               `gorm:"not null" json:"template_id"`
	TemplateTitle string                     `gorm:"type:text;not null" json:"template_title"`
	TemplateType  catalogdomain.TemplateType `gorm:"type:text;not null" json:"template_type"`
	Price         int64                      `gorm:"not null" json:"price"`
	Quantity      int64                      `gorm:"not null;default:1" json:"quantity"`
	RecordID      *string                    `gorm:"type:text" json:"record_id,omitempty"`
	SyncStatus    SyncStatus                 `gorm:"type:text;not null;default:'pending'" json:"sync_status"`
	CreatedAt     time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }

// Interactive reports whether the item needs an external record.
func (i OrderItem) Interactive() bool {
	return i.TemplateType == catalogdomain.TemplateTypeInteractive
}
