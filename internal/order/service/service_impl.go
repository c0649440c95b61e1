package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/qalam/internal/catalog/domain"
	"github.com/smallbiznis/qalam/internal/clock"
	"github.com/smallbiznis/qalam/internal/config"
	coupondomain "github.com/smallbiznis/qalam/internal/coupon/domain"
	obsmetrics "github.com/smallbiznis/qalam/internal/observability/metrics"
	"github.com/smallbiznis/qalam/internal/order/domain"
	outboxdomain "github.com/smallbiznis/qalam/internal/outbox/domain"
	"github.com/smallbiznis/qalam/internal/pricing"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	OutboxRepo outboxdomain.Repository
	Catalog    catalogdomain.Service
	Coupons    coupondomain.Service `optional:"true"`
	Totals     pricing.TotalsPolicy
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Config     config.Config
}

// Service is the purchase service: sole writer of Order/OrderItem state and
// of the outbox entries describing their side effects.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	outboxRepo  outboxdomain.Repository
	catalog     catalogdomain.Service
	coupons     coupondomain.Service
	totals      pricing.TotalsPolicy
	metrics     *obsmetrics.Metrics
	maxAttempts int
}

func New(p Params) domain.Service {
	maxAttempts := p.Config.OutboxMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		outboxRepo:  p.OutboxRepo,
		catalog:     p.Catalog,
		coupons:     p.Coupons,
		totals:      p.Totals,
		metrics:     p.Metrics,
		maxAttempts: maxAttempts,
	}
}

// CreateOrder snapshots current catalog prices into a pending order. All
// validation happens before the first write; no partial order is persisted.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Order{}, domain.ErrInvalidUser
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	now := s.clock.Now()
	orderID := s.genID.Generate()

	var (
		subtotal int64
		currency string
		items    = make([]domain.OrderItem, 0, len(req.Items))
	)
	for _, line := range req.Items {
		quantity := line.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}

		template, err := s.catalog.Get(ctx, catalogdomain.GetTemplateRequest{ID: line.TemplateID})
		if err != nil {
			if errors.Is(err, catalogdomain.ErrTemplateNotFound) || errors.Is(err, catalogdomain.ErrInvalidID) {
				return domain.Order{}, domain.ErrTemplateNotFound
			}
			return domain.Order{}, err
		}

		if currency == "" {
			currency = template.Currency
		}
		subtotal += template.Price * quantity
		items = append(items, domain.OrderItem{
			ID:            s.genID.Generate(),
			OrderID:       orderID,
			TemplateID:    template.ID,
			TemplateTitle: template.TitleEn,
			TemplateType:  template.Type,
			Price:         template.Price,
			Quantity:      quantity,
			SyncStatus:    domain.SyncStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if currency == "" {
		currency = "USD"
	}

	var (
		discount   int64
		couponCode *string
		couponID   snowflake.ID
	)
	if code := strings.TrimSpace(req.CouponCode); code != "" && s.coupons != nil {
		resolution, err := s.coupons.Resolve(ctx, code, subtotal)
		if err != nil {
			return domain.Order{}, err
		}
		discount = resolution.Discount
		couponID = resolution.CouponID
		couponCode = &code
	}

	totals := s.totals(subtotal, discount)
	order := domain.Order{
		ID:          orderID,
		OrderNumber: s.orderNumber(orderID),
		UserID:      userID,
		Status:      domain.StatusPending,
		Subtotal:    totals.Subtotal,
		Discount:    totals.Discount,
		Tax:         totals.Tax,
		Total:       totals.Total,
		Currency:    currency,
		CouponCode:  couponCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The redemption commits with the order: a failed insert burns no
	// redemption, and losing the last slot rolls the order back.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &order, items); err != nil {
			return err
		}
		if couponID != 0 {
			return s.coupons.Redeem(ctx, tx, couponID)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated(ctx)
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
		zap.Int("items", len(items)),
	)

	order.Items = items
	return order, nil
}

// CompletePayment finalizes payment and, when the order carries interactive
// items, appends exactly one order.completed outbox entry. The status update
// and the outbox insert commit in the same transaction; a crash between them
// cannot be observed.
func (s *Service) CompletePayment(ctx context.Context, req domain.CompletePaymentRequest) (domain.Order, error) {
	orderID, err := s.parseID(req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return domain.Order{}, domain.ErrInvalidPayment
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	if !order.Status.CanTransition(domain.StatusCompleted) {
		return domain.Order{}, domain.ErrInvalidOrderState
	}

	items, err := s.repo.ListItems(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	event, err := s.buildProvisionEvent(ctx, order.UserID, items)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.MarkCompleted(ctx, tx, orderID, paymentID, req.PaymentMethod, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidOrderState
		}

		if event == nil {
			// Downloadable-only orders have no asynchronous follow-up.
			return nil
		}
		return s.appendEvent(ctx, tx, orderID, *event, now)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCompleted(ctx)
	s.log.Info("payment completed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", paymentID),
		zap.Bool("provisioning_queued", event != nil),
	)

	order.Status = domain.StatusCompleted
	order.PaymentID = &paymentID
	if req.PaymentMethod != "" {
		method := req.PaymentMethod
		order.PaymentMethod = &method
	}
	order.PaidAt = &now
	order.UpdatedAt = now
	order.Items = items
	return *order, nil
}

// buildProvisionEvent collects the interactive items into one event payload,
// capturing the template structure snapshot at write time. Nil means the
// order has no interactive items.
func (s *Service) buildProvisionEvent(ctx context.Context, userID string, items []domain.OrderItem) (*outboxdomain.OrderCompleted, error) {
	provision := make([]outboxdomain.ProvisionItem, 0, len(items))
	for _, item := range items {
		if !item.Interactive() {
			continue
		}

		structure := map[string]any{}
		template, err := s.catalog.Get(ctx, catalogdomain.GetTemplateRequest{ID: item.TemplateID.String()})
		if err == nil && len(template.Structure) > 0 {
			if err := json.Unmarshal(template.Structure, &structure); err != nil {
				return nil, fmt.Errorf("decode template structure: %w", err)
			}
		}

		provision = append(provision, outboxdomain.ProvisionItem{
			OrderItemID:       item.ID.String(),
			TemplateID:        item.TemplateID.String(),
			TemplateType:      string(item.TemplateType),
			TemplateStructure: structure,
		})
	}
	if len(provision) == 0 {
		return nil, nil
	}
	return &outboxdomain.OrderCompleted{UserID: userID, Items: provision}, nil
}

func (s *Service) MarkProcessing(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, orderID, []domain.Status{domain.StatusPending}, domain.StatusProcessing)
}

func (s *Service) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, orderID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCancelled)
}

func (s *Service) MarkFailed(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, orderID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusFailed)
}

// Refund moves a completed order to refunded and queues deletion of every
// external record already provisioned for it. Records never provisioned
// need no cleanup.
func (s *Service) Refund(ctx context.Context, orderID string) (domain.Order, error) {
	id, err := s.parseID(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	if !order.Status.CanTransition(domain.StatusRefunded) {
		return domain.Order{}, domain.ErrInvalidOrderState
	}

	items, err := s.repo.ListItems(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.UpdateStatus(ctx, tx, id,
			[]domain.Status{domain.StatusCompleted}, domain.StatusRefunded, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInvalidOrderState
		}

		for _, item := range items {
			if !item.Interactive() || item.SyncStatus != domain.SyncStatusSynced || item.RecordID == nil {
				continue
			}
			event := outboxdomain.RecordDeleted{RecordID: *item.RecordID}
			if err := s.appendEvent(ctx, tx, id, event, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order refunded", zap.String("order_id", order.ID.String()))

	order.Status = domain.StatusRefunded
	order.UpdatedAt = now
	order.Items = items
	return *order, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetOrderRequest) (domain.Order, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return *order, nil
}

func (s *Service) ListByUser(ctx context.Context, req domain.ListOrderRequest) (domain.ListOrderResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListOrderResponse{}, domain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListOrderResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(order *domain.Order) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        order.ID.String(),
			CreatedAt: order.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	orders := make([]domain.Order, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		orders = append(orders, *item)
	}

	resp := domain.ListOrderResponse{Orders: orders}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) transition(ctx context.Context, orderID string, expected []domain.Status, next domain.Status) (domain.Order, error) {
	id, err := s.parseID(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	affected, err := s.repo.UpdateStatus(ctx, s.db, id, expected, next, now)
	if err != nil {
		return domain.Order{}, err
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrInvalidOrderState
	}

	order.Status = next
	order.UpdatedAt = now
	return *order, nil
}

func (s *Service) appendEvent(ctx context.Context, tx *gorm.DB, aggregateID snowflake.ID, event outboxdomain.Event, now time.Time) error {
	payload, err := outboxdomain.EncodePayload(event)
	if err != nil {
		return err
	}
	entry := outboxdomain.Entry{
		ID:          s.genID.Generate(),
		AggregateID: aggregateID,
		EventType:   outboxdomain.EventTypeOf(event),
		Payload:     payload,
		Status:      outboxdomain.StatusPending,
		Attempts:    0,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.outboxRepo.Append(ctx, tx, &entry)
}

// orderNumber derives the human-readable number from the full snowflake id,
// so uniqueness of the id carries over to the order_number unique index.
func (s *Service) orderNumber(id snowflake.ID) string {
	return fmt.Sprintf("ORD-%s-%d", s.clock.Now().Format("20060102"), int64(id))
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
