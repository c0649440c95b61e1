package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/qalam/internal/clock"
	"github.com/smallbiznis/qalam/internal/docstore"
	orderdomain "github.com/smallbiznis/qalam/internal/order/domain"
	orderrepository "github.com/smallbiznis/qalam/internal/order/repository"
	"github.com/smallbiznis/qalam/internal/outbox/domain"
	"github.com/smallbiznis/qalam/internal/outbox/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type storeStub struct {
	mu          sync.Mutex
	createCalls int
	deleteCalls int
	createErr   error
	deleteErr   error
	lastRecord  string
}

func (s *storeStub) CreateUserRecord(ctx context.Context, userID, templateID string, structure map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return "", s.createErr
	}
	s.lastRecord = fmt.Sprintf("rec_%d", s.createCalls)
	return s.lastRecord, nil
}

func (s *storeStub) UpdateUserRecord(ctx context.Context, recordID string, fields map[string]any) error {
	return nil
}

func (s *storeStub) DeleteUserRecord(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	return s.deleteErr
}

func (s *storeStub) GetUserRecord(ctx context.Context, recordID string) (*docstore.Record, error) {
	return nil, docstore.ErrRecordNotFound
}

func (s *storeStub) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls, s.deleteCalls
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	db         *gorm.DB
	repo       domain.Repository
	store      *storeStub
	clock      *clock.FakeClock
	node       *snowflake.Node
}

func setupDispatcher(t *testing.T, store *storeStub) *dispatcherFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &orderdomain.OrderItem{}, &domain.Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	repo := repository.Provide()

	dispatcher := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  fakeClock,
		Repo:   repo,
		Orders: orderrepository.Provide(),
		Store:  store,
		Config: Config{
			PollInterval:        time.Second,
			BatchSize:           10,
			MaxAttempts:         3,
			StaleClaimThreshold: 15 * time.Minute,
		},
	})

	return &dispatcherFixture{
		dispatcher: dispatcher,
		db:         db,
		repo:       repo,
		store:      store,
		clock:      fakeClock,
		node:       node,
	}
}

func (f *dispatcherFixture) seedInteractiveItem(t *testing.T) orderdomain.OrderItem {
	t.Helper()

	now := f.clock.Now()
	order := orderdomain.Order{
		ID:          f.node.Generate(),
		OrderNumber: "ORD-20260310-000001",
		UserID:      "user_1",
		Status:      orderdomain.StatusCompleted,
		Subtotal:    5000,
		Total:       5000,
		Currency:    "USD",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	item := orderdomain.OrderItem{
		ID:            f.node.Generate(),
		OrderID:       order.ID,
		TemplateID:    f.node.Generate(),
		TemplateTitle: "Lesson Plan",
		TemplateType:  "interactive",
		Price:         5000,
		Quantity:      1,
		SyncStatus:    orderdomain.SyncStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (f *dispatcherFixture) seedEntry(t *testing.T, eventType string, payload string, maxAttempts int) domain.Entry {
	t.Helper()

	now := f.clock.Now()
	entry := domain.Entry{
		ID:          f.node.Generate(),
		AggregateID: f.node.Generate(),
		EventType:   eventType,
		Payload:     []byte(payload),
		Status:      domain.StatusPending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

func (f *dispatcherFixture) provisionPayload(item orderdomain.OrderItem) string {
	return fmt.Sprintf(
		`{"user_id":"user_1","items":[{"order_item_id":"%s","template_id":"%s","template_type":"interactive","template_structure":{"fields":[]}}]}`,
		item.ID, item.TemplateID,
	)
}

func (f *dispatcherFixture) loadEntry(t *testing.T, id snowflake.ID) domain.Entry {
	t.Helper()
	var entry domain.Entry
	if err := f.db.Raw(`SELECT * FROM outbox_entries WHERE id = ?`, id).Scan(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	return entry
}

func (f *dispatcherFixture) loadItem(t *testing.T, id snowflake.ID) orderdomain.OrderItem {
	t.Helper()
	var item orderdomain.OrderItem
	if err := f.db.Raw(`SELECT * FROM order_items WHERE id = ?`, id).Scan(&item).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item
}

func TestProcessPendingProvisionsInteractiveItems(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed entry, got %s", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}

	synced := f.loadItem(t, item.ID)
	if synced.SyncStatus != orderdomain.SyncStatusSynced {
		t.Fatalf("expected synced item, got %s", synced.SyncStatus)
	}
	if synced.RecordID == nil || *synced.RecordID != store.lastRecord {
		t.Fatalf("expected record id %s on item, got %v", store.lastRecord, synced.RecordID)
	}
	if creates, _ := store.calls(); creates != 1 {
		t.Fatalf("expected 1 create call, got %d", creates)
	}
}

func TestProcessPendingRedeliveryIsIdempotent(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Force redelivery of the same entry. Already-synced items must be
	// skipped, not provisioned twice.
	if err := f.db.Exec(
		`UPDATE outbox_entries SET status = ?, processed_at = NULL WHERE id = ?`,
		domain.StatusPending, entry.ID,
	).Error; err != nil {
		t.Fatalf("reset entry: %v", err)
	}
	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if creates, _ := store.calls(); creates != 1 {
		t.Fatalf("expected create to run once across redeliveries, got %d", creates)
	}
	if got := f.loadEntry(t, entry.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed after redelivery, got %s", got.Status)
	}
}

func TestProcessPendingRetryCeiling(t *testing.T) {
	store := &storeStub{createErr: errors.New("store unavailable")}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	for i := 0; i < 5; i++ {
		if err := f.dispatcher.ProcessPending(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed entry, got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Fatalf("expected attempts to stop at max_attempts 3, got %d", got.Attempts)
	}
	if got.LastError == nil || *got.LastError == "" {
		t.Fatal("expected last_error to be recorded")
	}
	if creates, _ := store.calls(); creates != 3 {
		t.Fatalf("expected exactly 3 create calls, got %d", creates)
	}
	if synced := f.loadItem(t, item.ID); synced.SyncStatus != orderdomain.SyncStatusFailed {
		t.Fatalf("expected failed sync status, got %s", synced.SyncStatus)
	}
}

func TestProcessPendingUnknownEventTypeFailsImmediately(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	entry := f.seedEntry(t, "order.shipped", `{}`, 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed entry, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected no retries for unknown event type, got %d attempts", got.Attempts)
	}
}

func TestProcessPendingPermanentErrorFailsImmediately(t *testing.T) {
	store := &storeStub{createErr: docstore.Permanent(errors.New("schema violation"))}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed entry, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected permanent error to fail on first attempt, got %d", got.Attempts)
	}
	if creates, _ := store.calls(); creates != 1 {
		t.Fatalf("expected 1 create call, got %d", creates)
	}
}

func TestProcessPendingDeletesRecord(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	entry := f.seedEntry(t, domain.EventRecordDeleted, `{"record_id":"665f1f77bcf86cd799439011"}`, 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	if got := f.loadEntry(t, entry.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed entry, got %s", got.Status)
	}
	if _, deletes := store.calls(); deletes != 1 {
		t.Fatalf("expected 1 delete call, got %d", deletes)
	}
}

func TestProcessPendingDeleteMissingRecordSucceeds(t *testing.T) {
	store := &storeStub{deleteErr: docstore.ErrRecordNotFound}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	entry := f.seedEntry(t, domain.EventRecordDeleted, `{"record_id":"665f1f77bcf86cd799439011"}`, 3)

	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	if got := f.loadEntry(t, entry.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("expected idempotent delete to complete, got %s", got.Status)
	}
}

func TestClaimLoserObservesNil(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	entry := f.seedEntry(t, domain.EventRecordDeleted, `{"record_id":"r1"}`, 3)

	claimed, err := f.repo.Claim(ctx, f.db, entry.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected first claim to win")
	}
	if claimed.Status != domain.StatusProcessing {
		t.Fatalf("expected claimed row in processing, got %s", claimed.Status)
	}

	claimed, err = f.repo.Claim(ctx, f.db, entry.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed != nil {
		t.Fatal("expected second claim to lose")
	}
}

func TestDispatchStaleSnapshotCountsEveryAttempt(t *testing.T) {
	store := &storeStub{createErr: errors.New("store unavailable")}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	// Two workers fetch the same pending entry before either claims it.
	snapshots, err := f.repo.FetchPending(ctx, f.db, 10)
	if err != nil || len(snapshots) != 1 {
		t.Fatalf("fetch: entries=%d err=%v", len(snapshots), err)
	}
	stale := snapshots[0]

	// Worker A claims, fails, releases with one attempt recorded. Worker B
	// then dispatches its stale snapshot; the claim must pick up the fresh
	// attempt count instead of overwriting it.
	if err := f.dispatcher.dispatch(ctx, stale); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := f.dispatcher.dispatch(ctx, stale); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	got := f.loadEntry(t, stale.ID)
	if got.Attempts != 2 {
		t.Fatalf("expected 2 attempts recorded, got %d", got.Attempts)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("expected entry still retrying, got %s", got.Status)
	}

	if err := f.dispatcher.dispatch(ctx, stale); err != nil {
		t.Fatalf("third dispatch: %v", err)
	}
	got = f.loadEntry(t, stale.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed at max_attempts, got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", got.Attempts)
	}
	if creates, _ := store.calls(); creates != 3 {
		t.Fatalf("expected 3 create calls, got %d", creates)
	}
}

type failingSyncRepo struct {
	orderdomain.Repository
}

func (f *failingSyncRepo) UpdateItemSync(ctx context.Context, db *gorm.DB, itemID snowflake.ID, recordID *string, status orderdomain.SyncStatus, now time.Time) error {
	return errors.New("sync write rejected")
}

func TestDispatchLogsSyncStatusWriteFailure(t *testing.T) {
	store := &storeStub{createErr: errors.New("store unavailable")}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := New(Params{
		DB:     f.db,
		Log:    zap.New(core),
		Clock:  f.clock,
		Repo:   f.repo,
		Orders: &failingSyncRepo{orderrepository.Provide()},
		Store:  store,
		Config: Config{
			PollInterval:        time.Second,
			BatchSize:           10,
			MaxAttempts:         3,
			StaleClaimThreshold: 15 * time.Minute,
		},
	})

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	if err := dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusPending || got.Attempts != 1 {
		t.Fatalf("expected retry scheduling to proceed, got status=%s attempts=%d", got.Status, got.Attempts)
	}
	if logs.FilterMessage("failed to record item sync failure").Len() != 1 {
		t.Fatal("expected the discarded sync-status write error to be logged")
	}
}

func TestProcessPendingReclaimsStaleClaims(t *testing.T) {
	store := &storeStub{}
	f := setupDispatcher(t, store)
	ctx := context.Background()

	item := f.seedInteractiveItem(t)
	entry := f.seedEntry(t, domain.EventOrderCompleted, f.provisionPayload(item), 3)

	// A worker claims the entry and dies before finishing.
	claimed, err := f.repo.Claim(ctx, f.db, entry.ID, f.clock.Now())
	if err != nil || claimed == nil {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}

	// Before the threshold elapses the entry stays invisible.
	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("early cycle: %v", err)
	}
	if creates, _ := store.calls(); creates != 0 {
		t.Fatalf("expected claimed entry to stay invisible, got %d creates", creates)
	}

	f.clock.Advance(16 * time.Minute)
	if err := f.dispatcher.ProcessPending(ctx); err != nil {
		t.Fatalf("reclaim cycle: %v", err)
	}

	got := f.loadEntry(t, entry.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected reclaimed entry to be processed, got %s", got.Status)
	}
	// Reclaiming is not an attempt; only real handler failures consume budget.
	if got.Attempts != 0 {
		t.Fatalf("expected reclaim to consume no attempts, got %d", got.Attempts)
	}
}
