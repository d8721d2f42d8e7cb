package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePaymentRepo struct {
	payments map[string]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*models.Payment{}}
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if _, exists := f.payments[payment.GatewayRef]; exists {
		return errors.New(`duplicate key value violates unique constraint "ux_payments_gateway_ref"`)
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	stored := *payment
	f.payments[payment.GatewayRef] = &stored
	return nil
}

func (f *fakePaymentRepo) FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.Payment, error) {
	stored, ok := f.payments[gatewayRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakePaymentRepo) FindPaidByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, payment := range f.payments {
		if payment.OrderID == orderID && payment.Status == enums.PaymentStatusPaid {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) UpdateStatusIf(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (int64, error) {
	for _, payment := range f.payments {
		if payment.ID == paymentID && payment.Status == from {
			payment.Status = to
			if _, ok := updates["paid_at"]; ok {
				now := time.Now()
				payment.PaidAt = &now
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakePaymentRepo) MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error {
	for _, payment := range f.payments {
		if payment.ID == paymentID && payment.Status == enums.PaymentStatusPaid {
			payment.Status = enums.PaymentStatusRefunded
			now := time.Now()
			payment.RefundedAt = &now
		}
	}
	return nil
}

type fakeOrderStore struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrderStore) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrderStore) Create(ctx context.Context, order *models.Order) error { return nil }

func (f *fakeOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeOrderStore) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	return 0, nil
}

func (f *fakeOrderStore) AssignDriverIf(ctx context.Context, orderID, driverProfileID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	return 0, nil
}

func (f *fakeOrderStore) ReassignDriverIf(ctx context.Context, orderID, fromDriver, toDriver uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeOrderStore) AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	return nil
}

func (f *fakeOrderStore) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return nil, nil
}

func (f *fakeOrderStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (f *fakeOrderStore) ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (f *fakeOrderStore) CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeFlow struct {
	store     *fakeOrderStore
	confirmed int
	failed    int
}

func (f *fakeFlow) ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor, note string) error {
	f.confirmed++
	if stored, ok := f.store.orders[order.ID]; ok {
		stored.Status = enums.OrderStatusConfirmed
	}
	order.Status = enums.OrderStatusConfirmed
	return nil
}

func (f *fakeFlow) FailPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor, note string) error {
	f.failed++
	if stored, ok := f.store.orders[order.ID]; ok {
		stored.Status = enums.OrderStatusPaymentFailed
	}
	order.Status = enums.OrderStatusPaymentFailed
	return nil
}

type fakeDedupe struct {
	seen     map[string]bool
	fresh    bool
	used     int
	released int
}

func (f *fakeDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.used++
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedupe) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
		f.released++
	}
	return nil
}

func (f *fakeDedupe) WebhookKey(gatewayRef string) string {
	return "fr:webhook:" + gatewayRef
}

// flakyTxRunner fails the first failures transactions without invoking fn,
// standing in for a database hiccup between dedupe claim and commit.
type flakyTxRunner struct {
	failures int
}

func (f *flakyTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset by peer")
	}
	return fn(nil)
}

type paymentFixture struct {
	svc    Service
	repo   *fakePaymentRepo
	orders *fakeOrderStore
	flow   *fakeFlow
	dedupe *fakeDedupe
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	store := newFakeOrderStore()
	fx := &paymentFixture{
		repo:   newFakePaymentRepo(),
		orders: store,
		flow:   &fakeFlow{store: store},
		dedupe: &fakeDedupe{},
	}
	svc, err := NewService(Deps{
		Repo:         fx.repo,
		Tx:           fakeTxRunner{},
		OrderRepo:    fx.orders,
		OrderService: fx.flow,
		Dedupe:       fx.dedupe,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fx.svc = svc
	return fx
}

func (fx *paymentFixture) seedOrder(status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     status,
		TotalCents: 135000,
	}
	fx.orders.orders[order.ID] = order
	return order
}

func TestService_HandleNotificationPaid(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusPaymentPending)

	err := fx.svc.HandleNotification(context.Background(), NotificationInput{
		GatewayRef:        "MID-12345",
		OrderID:           order.ID,
		TransactionStatus: "settlement",
		AmountCents:       135000,
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	payment := fx.repo.payments["MID-12345"]
	if payment == nil || payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("payment = %+v, want paid", payment)
	}
	if fx.flow.confirmed != 1 {
		t.Fatalf("order confirmed %d times, want 1", fx.flow.confirmed)
	}
	if fx.orders.orders[order.ID].Status != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", fx.orders.orders[order.ID].Status)
	}
}

func TestService_HandleNotificationReplay(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusPaymentPending)
	input := NotificationInput{
		GatewayRef:        "MID-12345",
		OrderID:           order.ID,
		TransactionStatus: "settlement",
		AmountCents:       135000,
	}

	for i := 0; i < 3; i++ {
		if err := fx.svc.HandleNotification(context.Background(), input); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	if fx.flow.confirmed != 1 {
		t.Fatalf("order confirmed %d times across replays, want 1", fx.flow.confirmed)
	}
	if len(fx.repo.payments) != 1 {
		t.Fatalf("%d payment rows, want 1", len(fx.repo.payments))
	}
}

func TestService_HandleNotificationReplayWithoutDedupe(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusPaymentPending)
	input := NotificationInput{
		GatewayRef:        "MID-67890",
		OrderID:           order.ID,
		TransactionStatus: "settlement",
	}

	if err := fx.svc.HandleNotification(context.Background(), input); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Simulate the redis key being lost: the settled payment row still stops
	// the replay.
	fx.dedupe.seen = map[string]bool{}
	if err := fx.svc.HandleNotification(context.Background(), input); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if fx.flow.confirmed != 1 {
		t.Fatalf("order confirmed %d times, want 1", fx.flow.confirmed)
	}
}

func TestService_HandleNotificationRetryAfterTxFailure(t *testing.T) {
	store := newFakeOrderStore()
	fx := &paymentFixture{
		repo:   newFakePaymentRepo(),
		orders: store,
		flow:   &fakeFlow{store: store},
		dedupe: &fakeDedupe{},
	}
	svc, err := NewService(Deps{
		Repo:         fx.repo,
		Tx:           &flakyTxRunner{failures: 1},
		OrderRepo:    fx.orders,
		OrderService: fx.flow,
		Dedupe:       fx.dedupe,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fx.svc = svc

	order := fx.seedOrder(enums.OrderStatusPaymentPending)
	input := NotificationInput{
		GatewayRef:        "MID-RETRY-1",
		OrderID:           order.ID,
		TransactionStatus: "settlement",
		AmountCents:       135000,
	}

	// The transaction dies after the dedupe claim. The claim must be
	// released so the gateway's retry is not treated as a replay.
	if err := fx.svc.HandleNotification(context.Background(), input); err == nil {
		t.Fatalf("expected error from failed transaction")
	}
	if fx.dedupe.released != 1 {
		t.Fatalf("dedupe key released %d times, want 1", fx.dedupe.released)
	}
	if len(fx.repo.payments) != 0 {
		t.Fatalf("payment row recorded despite failed transaction")
	}

	if err := fx.svc.HandleNotification(context.Background(), input); err != nil {
		t.Fatalf("retry: %v", err)
	}
	payment := fx.repo.payments["MID-RETRY-1"]
	if payment == nil || payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("payment = %+v, want paid after retry", payment)
	}
	if fx.flow.confirmed != 1 {
		t.Fatalf("order confirmed %d times, want 1", fx.flow.confirmed)
	}
}

func TestService_HandleNotificationFailed(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusPaymentPending)

	err := fx.svc.HandleNotification(context.Background(), NotificationInput{
		GatewayRef:        "MID-FAIL-1",
		OrderID:           order.ID,
		TransactionStatus: "expire",
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	payment := fx.repo.payments["MID-FAIL-1"]
	if payment == nil || payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("payment = %+v, want failed", payment)
	}
	if fx.flow.failed != 1 {
		t.Fatalf("order failed %d times, want 1", fx.flow.failed)
	}
}

func TestService_HandleNotificationIgnoresNonTerminal(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusPaymentPending)

	err := fx.svc.HandleNotification(context.Background(), NotificationInput{
		GatewayRef:        "MID-PEND-1",
		OrderID:           order.ID,
		TransactionStatus: "pending",
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(fx.repo.payments) != 0 {
		t.Fatalf("payment row created for non-terminal status")
	}
	if fx.dedupe.used != 0 {
		t.Fatalf("dedupe consulted for ignored status")
	}
}

func TestService_HandleNotificationPaidOrderAlreadyConfirmed(t *testing.T) {
	fx := newPaymentFixture(t)
	order := fx.seedOrder(enums.OrderStatusConfirmed)

	err := fx.svc.HandleNotification(context.Background(), NotificationInput{
		GatewayRef:        "MID-LATE-1",
		OrderID:           order.ID,
		TransactionStatus: "settlement",
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if fx.flow.confirmed != 0 {
		t.Fatalf("confirm invoked on already confirmed order")
	}
	if fx.repo.payments["MID-LATE-1"].Status != enums.PaymentStatusPaid {
		t.Fatalf("payment not recorded for late notification")
	}
}
