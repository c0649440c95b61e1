// Package domain contains persistence models and contracts for coupons.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscountType selects how a coupon's value is applied.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

// Coupon is a redeemable discount code. Percent values are basis points of
// the subtotal; fixed values are minor currency units.
type Coupon struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Code           string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	DiscountType   DiscountType `gorm:"type:text;not null" json:"discount_type"`
	DiscountValue  int64        `gorm:"not null" json:"discount_value"`
	StartsAt       *time.Time   `gorm:"" json:"starts_at,omitempty"`
	ExpiresAt      *time.Time   `gorm:"" json:"expires_at,omitempty"`
	MaxRedemptions int64        `gorm:"not null;default:0" json:"max_redemptions"`
	RedeemedCount  int64        `gorm:"not null;default:0" json:"redeemed_count"`
	Active         bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Coupon) TableName() string { return "coupons" }
