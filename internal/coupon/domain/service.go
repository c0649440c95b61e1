package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Resolution is the outcome of validating a coupon code against a subtotal.
// The redemption itself is consumed separately, inside the checkout
// transaction, so a failed order never burns a redemption.
type Resolution struct {
	CouponID snowflake.ID
	Discount int64
}

// Service resolves coupon codes into discount amounts during checkout.
type Service interface {
	// Resolve validates the code and returns the discount in minor units for
	// the given subtotal. It writes nothing.
	Resolve(ctx context.Context, code string, subtotal int64) (Resolution, error)

	// Redeem consumes one redemption on the caller's transaction. It fails
	// with ErrCouponInvalid when a concurrent checkout took the last slot.
	Redeem(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
}

var (
	ErrCouponInvalid = errors.New("coupon_invalid")
)
