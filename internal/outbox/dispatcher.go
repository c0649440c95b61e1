// Package outbox delivers pending outbox entries to the external document
// store. Delivery is at-least-once; handlers are idempotent so redelivery
// is safe.
package outbox

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/clock"
	"github.com/smallbiznis/qalam/internal/docstore"
	obsmetrics "github.com/smallbiznis/qalam/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/qalam/internal/order/domain"
	"github.com/smallbiznis/qalam/internal/outbox/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result describes how handling one entry ended. A nil Err means success;
// Permanent marks errors retrying cannot fix.
type Result struct {
	Err       error
	Permanent bool
}

func success() Result            { return Result{} }
func retryable(err error) Result { return Result{Err: err} }
func permanent(err error) Result { return Result{Err: err, Permanent: true} }

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Orders  orderdomain.Repository
	Store   docstore.Store
	Config  Config              `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher polls the outbox table and applies each entry's side effect.
// Several dispatchers may run concurrently; the claim CAS guarantees an
// entry is held by at most one of them.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	orders  orderdomain.Repository
	store   docstore.Store
	cfg     Config
	metrics *obsmetrics.Metrics
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		db:      p.DB,
		log:     p.Log.Named("outbox.dispatcher"),
		clock:   p.Clock,
		repo:    p.Repo,
		orders:  p.Orders,
		store:   p.Store,
		cfg:     p.Config.withDefaults(),
		metrics: p.Metrics,
	}
}

// ProcessPending runs one dispatch cycle: reclaim stale claims, then claim
// and handle a batch of pending entries.
func (d *Dispatcher) ProcessPending(ctx context.Context) error {
	now := d.clock.Now()
	reclaimed, err := d.repo.ReclaimStale(ctx, d.db, now.Add(-d.cfg.StaleClaimThreshold), now)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		d.log.Warn("reclaimed stale outbox claims", zap.Int64("count", reclaimed))
	}

	entries, err := d.repo.FetchPending(ctx, d.db, d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := d.dispatch(ctx, entry); err != nil {
			d.log.Error("dispatch failed",
				zap.String("entry_id", entry.ID.String()),
				zap.String("event_type", entry.EventType),
				zap.Error(err),
			)
		}
	}
	return nil
}

// dispatch claims one entry, runs its handler, and advances its state. The
// fetched snapshot is only used to name the entry; handling and attempt
// bookkeeping run on the row returned by the claim, which reflects attempts
// recorded by other workers since the fetch.
func (d *Dispatcher) dispatch(ctx context.Context, entry domain.Entry) error {
	fresh, err := d.repo.Claim(ctx, d.db, entry.ID, d.clock.Now())
	if err != nil {
		return err
	}
	if fresh == nil {
		// Another worker holds the entry; losing the claim is harmless.
		return nil
	}

	return d.advance(ctx, *fresh, d.handle(ctx, *fresh))
}

func (d *Dispatcher) handle(ctx context.Context, entry domain.Entry) Result {
	event, err := domain.DecodeEvent(entry)
	if err != nil {
		return permanent(err)
	}

	switch event := event.(type) {
	case domain.OrderCompleted:
		return d.handleOrderCompleted(ctx, event)
	case domain.RecordDeleted:
		return d.handleRecordDeleted(ctx, event)
	default:
		return permanent(domain.ErrUnknownEventType)
	}
}

// handleOrderCompleted provisions one external record per interactive item.
// The store's create is not inherently idempotent, so items already synced
// are skipped; that makes redelivery of the whole entry safe.
func (d *Dispatcher) handleOrderCompleted(ctx context.Context, event domain.OrderCompleted) Result {
	for _, provision := range event.Items {
		itemID, err := snowflake.ParseString(provision.OrderItemID)
		if err != nil {
			return permanent(err)
		}

		item, err := d.orders.FindItem(ctx, d.db, itemID)
		if err != nil {
			return retryable(err)
		}
		if item == nil {
			d.log.Warn("order item missing, skipping provisioning",
				zap.String("order_item_id", provision.OrderItemID))
			continue
		}
		if item.SyncStatus == orderdomain.SyncStatusSynced {
			continue
		}

		recordID, err := d.store.CreateUserRecord(ctx, event.UserID, provision.TemplateID, provision.TemplateStructure)
		if err != nil {
			if syncErr := d.orders.UpdateItemSync(ctx, d.db, itemID, nil, orderdomain.SyncStatusFailed, d.clock.Now()); syncErr != nil {
				d.log.Warn("failed to record item sync failure",
					zap.String("order_item_id", provision.OrderItemID),
					zap.Error(syncErr),
				)
			}
			if docstore.IsPermanent(err) {
				return permanent(err)
			}
			return retryable(err)
		}

		if err := d.orders.UpdateItemSync(ctx, d.db, itemID, &recordID, orderdomain.SyncStatusSynced, d.clock.Now()); err != nil {
			return retryable(err)
		}
	}
	return success()
}

func (d *Dispatcher) handleRecordDeleted(ctx context.Context, event domain.RecordDeleted) Result {
	err := d.store.DeleteUserRecord(ctx, event.RecordID)
	if errors.Is(err, docstore.ErrRecordNotFound) {
		// Already gone; deletion is idempotent.
		return success()
	}
	if err != nil {
		if docstore.IsPermanent(err) {
			return permanent(err)
		}
		return retryable(err)
	}
	return success()
}

// advance is the explicit retry-scheduling step: success completes the
// entry, permanent failures fail it immediately, retryable failures return
// it to pending until the attempt budget runs out.
func (d *Dispatcher) advance(ctx context.Context, entry domain.Entry, result Result) error {
	now := d.clock.Now()

	if result.Err == nil {
		if err := d.repo.MarkCompleted(ctx, d.db, entry.ID, now); err != nil {
			return err
		}
		d.metrics.RecordOutboxDispatch(ctx, entry.EventType, "completed")
		d.log.Info("outbox entry completed",
			zap.String("entry_id", entry.ID.String()),
			zap.String("event_type", entry.EventType),
		)
		return nil
	}

	attempts := entry.Attempts + 1
	message := result.Err.Error()

	if result.Permanent || attempts >= entry.MaxAttempts {
		if err := d.repo.MarkFailed(ctx, d.db, entry.ID, attempts, message, now); err != nil {
			return err
		}
		d.metrics.RecordOutboxDispatch(ctx, entry.EventType, "failed")
		d.log.Error("outbox entry failed",
			zap.String("entry_id", entry.ID.String()),
			zap.String("event_type", entry.EventType),
			zap.Int("attempts", attempts),
			zap.Bool("permanent", result.Permanent),
			zap.Error(result.Err),
		)
		return nil
	}

	if err := d.repo.ReleaseForRetry(ctx, d.db, entry.ID, attempts, message, now); err != nil {
		return err
	}
	d.metrics.RecordOutboxDispatch(ctx, entry.EventType, "retry")
	d.log.Warn("outbox entry scheduled for retry",
		zap.String("entry_id", entry.ID.String()),
		zap.String("event_type", entry.EventType),
		zap.Int("attempts", attempts),
		zap.Int("max_attempts", entry.MaxAttempts),
		zap.Error(result.Err),
	)
	return nil
}
