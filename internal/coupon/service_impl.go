package coupon

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/clock"
	"github.com/smallbiznis/qalam/internal/coupon/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("coupon.service"),
		clock: p.Clock,
	}
}

func (s *Service) Resolve(ctx context.Context, code string, subtotal int64) (domain.Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Resolution{}, domain.ErrCouponInvalid
	}

	var coupon domain.Coupon
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, code, discount_type, discount_value, starts_at, expires_at,
		        max_redemptions, redeemed_count, active, created_at, updated_at
		 FROM coupons WHERE code = ?`,
		code,
	).Scan(&coupon).Error
	if err != nil {
		return domain.Resolution{}, err
	}

	now := s.clock.Now()
	switch {
	case coupon.ID == 0 || !coupon.Active:
		return domain.Resolution{}, domain.ErrCouponInvalid
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return domain.Resolution{}, domain.ErrCouponInvalid
	case coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt):
		return domain.Resolution{}, domain.ErrCouponInvalid
	case coupon.MaxRedemptions > 0 && coupon.RedeemedCount >= coupon.MaxRedemptions:
		return domain.Resolution{}, domain.ErrCouponInvalid
	}

	discount := int64(0)
	switch coupon.DiscountType {
	case domain.DiscountTypePercent:
		discount = subtotal * coupon.DiscountValue / 10000
	case domain.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return domain.Resolution{}, domain.ErrCouponInvalid
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return domain.Resolution{CouponID: coupon.ID, Discount: discount}, nil
}

// Redeem bumps the redemption count on the caller's transaction, guarded so
// a concurrent checkout cannot exceed the cap; zero rows affected means
// another request took the last slot.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE coupons SET redeemed_count = redeemed_count + 1, updated_at = ?
		 WHERE id = ? AND (max_redemptions = 0 OR redeemed_count < max_redemptions)`,
		s.clock.Now(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCouponInvalid
	}
	return nil
}
