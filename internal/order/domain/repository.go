package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository persists orders and items. Mutations take the caller's handle
// so the purchase service can group them into one transaction.
type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, order *Order, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*OrderItem, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*Order, error)

	// UpdateStatus moves an order from one of the expected statuses to next,
	// returning the number of affected rows. Zero rows means the order was
	// not in an expected status (lost a race or illegal transition).
	UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, expected []Status, next Status, now time.Time) (int64, error)

	// MarkCompleted is UpdateStatus specialized for payment completion: it
	// also records the payment reference and paid_at.
	MarkCompleted(ctx context.Context, tx *gorm.DB, id snowflake.ID, paymentID, paymentMethod string, now time.Time) (int64, error)

	// UpdateItemSync records the outcome of external-record provisioning.
	// The dispatcher is the only writer of these fields.
	UpdateItemSync(ctx context.Context, db *gorm.DB, itemID snowflake.ID, recordID *string, status SyncStatus, now time.Time) error
}
