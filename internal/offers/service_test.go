package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/internal/drivers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOfferRepo struct {
	offers    map[uuid.UUID]*models.DriverOffer
	createErr error
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: map[uuid.UUID]*models.DriverOffer{}}
}

func (f *fakeOfferRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOfferRepo) Create(ctx context.Context, offer *models.DriverOffer) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.offers {
		if existing.OrderID == offer.OrderID && existing.DriverProfileID == offer.DriverProfileID {
			return errors.New(`duplicate key value violates unique constraint "ux_driver_offers_order_driver"`)
		}
	}
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	stored := *offer
	f.offers[offer.ID] = &stored
	return nil
}

func (f *fakeOfferRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DriverOffer, error) {
	stored, ok := f.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeOfferRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DriverOffer, error) {
	var out []models.DriverOffer
	for _, offer := range f.offers {
		if offer.OrderID == orderID {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) UpdateStatusIf(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus) (int64, error) {
	stored, ok := f.offers[offerID]
	if !ok || stored.Status != from {
		return 0, nil
	}
	stored.Status = to
	return 1, nil
}

func (f *fakeOfferRepo) RejectOthers(ctx context.Context, orderID, acceptedOfferID uuid.UUID) (int64, error) {
	var n int64
	for _, offer := range f.offers {
		if offer.OrderID == orderID && offer.ID != acceptedOfferID && offer.Status == enums.OfferStatusPending {
			offer.Status = enums.OfferStatusRejected
			n++
		}
	}
	return n, nil
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

// fakeAssigner mirrors the order service's assignment guards against the
// shared in-memory store.
type fakeAssigner struct {
	store *fakeOrderStore
}

func (f *fakeAssigner) AssignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, driverProfileID uuid.UUID, deliveryFeeCents int64, actor orders.Actor, note string) error {
	stored, ok := f.store.orders[order.ID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if stored.DriverID != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a driver assigned")
	}
	if stored.Status != enums.OrderStatusReadyForPickup {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting pickup")
	}
	stored.Status = enums.OrderStatusDriverAssigned
	stored.DriverID = &driverProfileID
	if deliveryFeeCents > 0 {
		stored.TotalCents = stored.TotalCents - stored.DeliveryFeeCents + deliveryFeeCents
		stored.DeliveryFeeCents = deliveryFeeCents
	}
	*order = *stored
	return nil
}

func (f *fakeAssigner) ReassignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, newDriverProfileID uuid.UUID, actor orders.Actor, note string) error {
	stored, ok := f.store.orders[order.ID]
	if !ok || stored.DriverID == nil || stored.Status != enums.OrderStatusDriverAssigned {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no driver to replace")
	}
	stored.DriverID = &newDriverProfileID
	*order = *stored
	return nil
}

type fakeDriverStore struct {
	profiles map[uuid.UUID]*models.DriverProfile
}

func newFakeDriverStore() *fakeDriverStore {
	return &fakeDriverStore{profiles: map[uuid.UUID]*models.DriverProfile{}}
}

func (f *fakeDriverStore) WithTx(tx *gorm.DB) drivers.Repository { return f }

func (f *fakeDriverStore) FindByID(ctx context.Context, id uuid.UUID) (*models.DriverProfile, error) {
	stored, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

func (f *fakeDriverStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error) {
	for _, profile := range f.profiles {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDriverStore) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error {
	if profile, ok := f.profiles[id]; ok {
		profile.Status = status
	}
	return nil
}

func (f *fakeDriverStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DriverStatus) (int64, error) {
	profile, ok := f.profiles[id]
	if !ok || profile.Status != from {
		return 0, nil
	}
	profile.Status = to
	return 1, nil
}

func (f *fakeDriverStore) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	return nil
}

func (f *fakeDriverStore) IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error {
	return nil
}

type offerFixture struct {
	svc     Service
	repo    *fakeOfferRepo
	orders  *fakeOrderStore
	drivers *fakeDriverStore
}

func newOfferFixture(t *testing.T) *offerFixture {
	t.Helper()
	fx := &offerFixture{
		repo:    newFakeOfferRepo(),
		orders:  newFakeOrderStore(),
		drivers: newFakeDriverStore(),
	}
	svc, err := NewService(Deps{
		Repo:         fx.repo,
		Tx:           fakeTxRunner{},
		OrderRepo:    fx.orders,
		OrderService: &fakeAssigner{store: fx.orders},
		Drivers:      fx.drivers,
		ExpiryWindow: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fx.svc = svc
	return fx
}

func (fx *offerFixture) seedOrder(status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "FD-20260830-BBBB0001",
		CustomerID:       uuid.New(),
		MerchantID:       uuid.New(),
		Status:           status,
		SubtotalCents:    120000,
		DeliveryFeeCents: 16000,
		TotalCents:       136000,
	}
	fx.orders.orders[order.ID] = order
	return order
}

func (fx *offerFixture) seedDriver(status enums.DriverStatus, verified bool) *models.DriverProfile {
	profile := &models.DriverProfile{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Status:     status,
		IsVerified: verified,
	}
	fx.drivers.profiles[profile.ID] = profile
	return profile
}

func (fx *offerFixture) seedOffer(order *models.Order, driver *models.DriverProfile, fee int64, expiresAt time.Time) *models.DriverOffer {
	offer := &models.DriverOffer{
		ID:               uuid.New(),
		OrderID:          order.ID,
		DriverProfileID:  driver.ID,
		ProposedFeeCents: fee,
		Status:           enums.OfferStatusPending,
		ExpiresAt:        expiresAt,
	}
	stored := *offer
	fx.repo.offers[offer.ID] = &stored
	return offer
}

func TestService_CreateOffer(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)

	offer, err := fx.svc.Create(context.Background(), CreateInput{
		OrderID:          order.ID,
		DriverUserID:     driver.UserID,
		ProposedFeeCents: 18000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if offer.Status != enums.OfferStatusPending {
		t.Fatalf("status = %s, want pending", offer.Status)
	}
	if offer.ProposedFeeCents != 18000 {
		t.Fatalf("proposed fee = %d, want 18000", offer.ProposedFeeCents)
	}
	if !offer.ExpiresAt.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", offer.ExpiresAt)
	}
}

func TestService_CreateOfferOrderNotBiddable(t *testing.T) {
	fx := newOfferFixture(t)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusPreparing,
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusCompleted,
	} {
		order := fx.seedOrder(status)
		_, err := fx.svc.Create(context.Background(), CreateInput{
			OrderID:          order.ID,
			DriverUserID:     driver.UserID,
			ProposedFeeCents: 15000,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("status %s: err = %v, want state conflict", status, err)
		}
	}

	// Driver already set blocks bidding even in READY_FOR_PICKUP.
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	other := uuid.New()
	order.DriverID = &other
	_, err := fx.svc.Create(context.Background(), CreateInput{
		OrderID:          order.ID,
		DriverUserID:     driver.UserID,
		ProposedFeeCents: 15000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("assigned order: err = %v, want state conflict", err)
	}
}

func TestService_CreateOfferSelfOrder(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	order.CustomerID = driver.UserID

	_, err := fx.svc.Create(context.Background(), CreateInput{
		OrderID:          order.ID,
		DriverUserID:     driver.UserID,
		ProposedFeeCents: 15000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict for self order", err)
	}
}

func TestService_CreateOfferDuplicate(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	fx.seedOffer(order, driver, 15000, time.Now().Add(time.Hour))

	_, err := fx.svc.Create(context.Background(), CreateInput{
		OrderID:          order.ID,
		DriverUserID:     driver.UserID,
		ProposedFeeCents: 17000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict for duplicate offer", err)
	}
}

func TestService_CreateOfferDriverOffline(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOffline, true)

	_, err := fx.svc.Create(context.Background(), CreateInput{
		OrderID:          order.ID,
		DriverUserID:     driver.UserID,
		ProposedFeeCents: 15000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict for offline driver", err)
	}
}

func TestService_AcceptOffer(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	winner := fx.seedDriver(enums.DriverStatusOnline, true)
	loser := fx.seedDriver(enums.DriverStatusOnline, true)
	winningOffer := fx.seedOffer(order, winner, 18000, time.Now().Add(time.Hour))
	losingOffer := fx.seedOffer(order, loser, 20000, time.Now().Add(time.Hour))

	updated, err := fx.svc.Accept(context.Background(), AcceptInput{
		OfferID: winningOffer.ID,
		Actor:   orders.Actor{ID: order.CustomerID, Role: enums.ActorRoleCustomer},
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if updated.Status != enums.OrderStatusDriverAssigned {
		t.Fatalf("order status = %s, want driver_assigned", updated.Status)
	}
	if updated.DriverID == nil || *updated.DriverID != winner.ID {
		t.Fatalf("driver not assigned to winner")
	}
	if updated.DeliveryFeeCents != 18000 {
		t.Fatalf("delivery fee = %d, want accepted proposal 18000", updated.DeliveryFeeCents)
	}
	if fx.repo.offers[winningOffer.ID].Status != enums.OfferStatusAccepted {
		t.Fatalf("winning offer not accepted")
	}
	if fx.repo.offers[losingOffer.ID].Status != enums.OfferStatusRejected {
		t.Fatalf("sibling offer not rejected")
	}
	if winner.Status != enums.DriverStatusBusy {
		t.Fatalf("winner status = %s, want busy", winner.Status)
	}
}

func TestService_AcceptOfferAlreadyAssigned(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	offer := fx.seedOffer(order, driver, 18000, time.Now().Add(time.Hour))

	other := uuid.New()
	order.DriverID = &other

	_, err := fx.svc.Accept(context.Background(), AcceptInput{
		OfferID: offer.ID,
		Actor:   orders.Actor{ID: order.CustomerID, Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict when driver already assigned", err)
	}
	if fx.repo.offers[offer.ID].Status != enums.OfferStatusPending {
		t.Fatalf("offer mutated on failed accept")
	}
}

func TestService_AcceptOfferExpired(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	offer := fx.seedOffer(order, driver, 18000, time.Now().Add(-time.Minute))

	_, err := fx.svc.Accept(context.Background(), AcceptInput{
		OfferID: offer.ID,
		Actor:   orders.Actor{ID: order.CustomerID, Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict for expired offer", err)
	}
	if fx.repo.offers[offer.ID].Status != enums.OfferStatusExpired {
		t.Fatalf("offer status = %s, want expired", fx.repo.offers[offer.ID].Status)
	}
	if fx.orders.orders[order.ID].DriverID != nil {
		t.Fatalf("driver assigned from expired offer")
	}
}

func TestService_AcceptOfferForbidden(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	offer := fx.seedOffer(order, driver, 18000, time.Now().Add(time.Hour))

	_, err := fx.svc.Accept(context.Background(), AcceptInput{
		OfferID: offer.ID,
		Actor:   orders.Actor{ID: uuid.New(), Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestService_AcceptOfferNonCustomerRoles(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)
	offer := fx.seedOffer(order, driver, 18000, time.Now().Add(time.Hour))

	// A driver must not be able to accept their own bid on someone else's
	// order, and merchants have no say in driver selection at all.
	rejected := []orders.Actor{
		{ID: driver.UserID, Role: enums.ActorRoleDriver},
		{ID: uuid.New(), Role: enums.ActorRoleMerchant},
	}
	for _, actor := range rejected {
		_, err := fx.svc.Accept(context.Background(), AcceptInput{OfferID: offer.ID, Actor: actor})
		if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("Accept as %s: err = %v, want forbidden", actor.Role, err)
		}
		if fx.orders.orders[order.ID].DriverID != nil {
			t.Fatalf("driver assigned by forbidden %s accept", actor.Role)
		}
		if fx.repo.offers[offer.ID].Status != enums.OfferStatusPending {
			t.Fatalf("offer mutated by forbidden %s accept", actor.Role)
		}
	}

	// Admins accept on the customer's behalf through support tooling.
	updated, err := fx.svc.Accept(context.Background(), AcceptInput{
		OfferID: offer.ID,
		Actor:   orders.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
	})
	if err != nil {
		t.Fatalf("Accept as admin: %v", err)
	}
	if updated.DriverID == nil || *updated.DriverID != driver.ID {
		t.Fatalf("admin accept did not assign the bidding driver")
	}
}

func TestService_ListByOrderHidesExpiredPending(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	fresh := fx.seedOffer(order, fx.seedDriver(enums.DriverStatusOnline, true), 18000, time.Now().Add(time.Hour))
	fx.seedOffer(order, fx.seedDriver(enums.DriverStatusOnline, true), 15000, time.Now().Add(-time.Minute))
	settled := fx.seedOffer(order, fx.seedDriver(enums.DriverStatusOnline, true), 20000, time.Now().Add(-time.Hour))
	fx.repo.offers[settled.ID].Status = enums.OfferStatusRejected

	listed, err := fx.svc.ListByOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d offers, want 2 (expired pending hidden)", len(listed))
	}
	for _, offer := range listed {
		if offer.ID != fresh.ID && offer.ID != settled.ID {
			t.Fatalf("expired pending offer %s still listed", offer.ID)
		}
	}
}

func TestService_AssignDriver(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)
	driver := fx.seedDriver(enums.DriverStatusOnline, true)

	updated, err := fx.svc.AssignDriver(context.Background(), AssignInput{
		OrderID:         order.ID,
		DriverProfileID: driver.ID,
		Actor:           orders.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if updated.DriverID == nil || *updated.DriverID != driver.ID {
		t.Fatalf("driver not assigned")
	}
	if driver.Status != enums.DriverStatusBusy {
		t.Fatalf("driver status = %s, want busy", driver.Status)
	}
}

func TestService_AssignDriverUnavailable(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusReadyForPickup)

	for _, tc := range []struct {
		status   enums.DriverStatus
		verified bool
	}{
		{enums.DriverStatusOffline, true},
		{enums.DriverStatusBusy, true},
		{enums.DriverStatusOnline, false},
	} {
		driver := fx.seedDriver(tc.status, tc.verified)
		_, err := fx.svc.AssignDriver(context.Background(), AssignInput{
			OrderID:         order.ID,
			DriverProfileID: driver.ID,
			Actor:           orders.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("status=%s verified=%v: err = %v, want state conflict", tc.status, tc.verified, err)
		}
	}
}

func TestService_AssignDriverReassignment(t *testing.T) {
	fx := newOfferFixture(t)
	order := fx.seedOrder(enums.OrderStatusDriverAssigned)
	previous := fx.seedDriver(enums.DriverStatusBusy, true)
	replacement := fx.seedDriver(enums.DriverStatusOnline, true)
	order.DriverID = &previous.ID

	updated, err := fx.svc.AssignDriver(context.Background(), AssignInput{
		OrderID:         order.ID,
		DriverProfileID: replacement.ID,
		Actor:           orders.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin},
		Reason:          "previous driver unreachable",
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if updated.DriverID == nil || *updated.DriverID != replacement.ID {
		t.Fatalf("replacement not assigned")
	}
	if previous.Status != enums.DriverStatusOnline {
		t.Fatalf("previous driver status = %s, want online", previous.Status)
	}
	if replacement.Status != enums.DriverStatusBusy {
		t.Fatalf("replacement status = %s, want busy", replacement.Status)
	}
}
