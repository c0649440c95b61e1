package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/order/domain"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, order *domain.Order, items []domain.OrderItem) error {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO orders (id, order_number, user_id, status, subtotal, discount, tax, total, currency, coupon_code, payment_method, payment_id, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrderNumber,
		order.UserID,
		order.Status,
		order.Subtotal,
		order.Discount,
		order.Tax,
		order.Total,
		order.Currency,
		order.CouponCode,
		order.PaymentMethod,
		order.PaymentID,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	for _, item := range items {
		err = tx.WithContext(ctx).Exec(
			`INSERT INTO order_items (id, order_id, template_id, template_title, template_type, price, quantity, record_id, sync_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrderID,
			item.TemplateID,
			item.TemplateTitle,
			item.TemplateType,
			item.Price,
			item.Quantity,
			item.RecordID,
			item.SyncStatus,
			item.CreatedAt,
			item.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_number, user_id, status, subtotal, discount, tax, total, currency,
		        coupon_code, payment_method, payment_id, paid_at, created_at, updated_at
		 FROM orders WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, template_id, template_title, template_type, price, quantity,
		        record_id, sync_status, created_at, updated_at
		 FROM order_items WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, template_id, template_title, template_type, price, quantity,
		        record_id, sync_status, created_at, updated_at
		 FROM order_items WHERE id = ?`,
		itemID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*domain.Order, error) {
	var orders []*domain.Order
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("user_id = ?", userID)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 20
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, expected []domain.Status, next domain.Status, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status IN ?`,
		next,
		now,
		id,
		expected,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) MarkCompleted(ctx context.Context, tx *gorm.DB, id snowflake.ID, paymentID, paymentMethod string, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, payment_id = ?, payment_method = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		domain.StatusCompleted,
		paymentID,
		paymentMethod,
		now,
		now,
		id,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing},
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) UpdateItemSync(ctx context.Context, db *gorm.DB, itemID snowflake.ID, recordID *string, status domain.SyncStatus, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE order_items SET record_id = ?, sync_status = ?, updated_at = ? WHERE id = ?`,
		recordID,
		status,
		now,
		itemID,
	).Error
}
