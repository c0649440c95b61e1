package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/qalam/pkg/db/pagination"
)

type LineItem struct {
	TemplateID string `json:"template_id"`
	Quantity   int64  `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID     string     `json:"user_id"`
	Items      []LineItem `json:"items"`
	CouponCode string     `json:"coupon_code"`
}

type CompletePaymentRequest struct {
	OrderID       string         `json:"order_id"`
	PaymentID     string         `json:"payment_id"`
	PaymentMethod string         `json:"payment_method"`
	Metadata      map[string]any `json:"metadata"`
}

type GetOrderRequest struct {
	ID string
}

type ListOrderRequest struct {
	UserID    string
	PageToken string
	PageSize  int32
}

type ListOrderResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

// Service is the purchase service: the single writer of order state.
type Service interface {
	CreateOrder(context.Context, CreateOrderRequest) (Order, error)
	CompletePayment(context.Context, CompletePaymentRequest) (Order, error)
	MarkProcessing(ctx context.Context, orderID string) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
	MarkFailed(ctx context.Context, orderID string) (Order, error)
	Refund(ctx context.Context, orderID string) (Order, error)
	GetByID(context.Context, GetOrderRequest) (Order, error)
	ListByUser(context.Context, ListOrderRequest) (ListOrderResponse, error)
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidID         = errors.New("invalid_id")
	ErrEmptyCart         = errors.New("empty_cart")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrTemplateNotFound  = errors.New("template_not_found")
	ErrInvalidPayment    = errors.New("invalid_payment")
	ErrInvalidOrderState = errors.New("invalid_order_state")
	ErrNotFound          = errors.New("not_found")
)
