package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/middleware"
	internalorders "github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

type fakeOrderService struct {
	created      *internalorders.CreateInput
	cancelled    *internalorders.CancelInput
	transitioned *internalorders.TransitionInput
	order        *models.Order
	err          error
}

func (f *fakeOrderService) Create(_ context.Context, input internalorders.CreateInput) (*models.Order, error) {
	f.created = &input
	return f.order, f.err
}

func (f *fakeOrderService) Get(context.Context, uuid.UUID, internalorders.Actor) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) History(context.Context, uuid.UUID) ([]models.OrderStatusHistory, error) {
	return nil, f.err
}

func (f *fakeOrderService) ListByCustomer(context.Context, uuid.UUID, pagination.Params) ([]models.Order, string, error) {
	if f.order == nil {
		return nil, "", f.err
	}
	return []models.Order{*f.order}, "next-cursor", f.err
}

func (f *fakeOrderService) ListByMerchant(context.Context, uuid.UUID, pagination.Params) ([]models.Order, string, error) {
	return nil, "", f.err
}

func (f *fakeOrderService) Transition(_ context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	f.transitioned = &input
	return f.order, f.err
}

func (f *fakeOrderService) Cancel(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
	f.cancelled = &input
	return f.order, f.err
}

func (f *fakeOrderService) PayWithWallet(context.Context, uuid.UUID, internalorders.Actor) (*models.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) AssignDriverTx(context.Context, *gorm.DB, *models.Order, uuid.UUID, int64, internalorders.Actor, string) error {
	return f.err
}

func (f *fakeOrderService) ReassignDriverTx(context.Context, *gorm.DB, *models.Order, uuid.UUID, internalorders.Actor, string) error {
	return f.err
}

func (f *fakeOrderService) ConfirmPaymentTx(context.Context, *gorm.DB, *models.Order, internalorders.Actor, string) error {
	return f.err
}

func (f *fakeOrderService) FailPaymentTx(context.Context, *gorm.DB, *models.Order, internalorders.Actor, string) error {
	return f.err
}

func (f *fakeOrderService) CountCompletedByCustomer(context.Context, uuid.UUID) (int64, error) {
	return 0, f.err
}

func withActor(r *http.Request, userID uuid.UUID, role enums.ActorRole) *http.Request {
	ctx := middleware.WithUserID(r.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role.String())
	return r.WithContext(ctx)
}

func withOrderParam(r *http.Request, orderID uuid.UUID) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID.String())
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func sampleOrder(customerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "FD-20260831-AB12CD34",
		CustomerID:       customerID,
		MerchantID:       uuid.New(),
		Status:           enums.OrderStatusPending,
		SubtotalCents:    120000,
		DeliveryFeeCents: 16000,
		ServiceFeeCents:  2000,
		PlatformFeeCents: 1000,
		DiscountCents:    8000,
		TotalCents:       131000,
		DeliveryAddress:  "Jl. Sudirman 1",
	}
}

func TestCreateOrderHandler(t *testing.T) {
	customerID := uuid.New()
	svc := &fakeOrderService{order: sampleOrder(customerID)}
	handler := CreateOrder(svc, testLogger())

	body := `{
		"merchant_id": "` + uuid.NewString() + `",
		"items": [{"product_id": "` + uuid.NewString() + `", "qty": 2}],
		"delivery_address": "Jl. Sudirman 1",
		"delivery_lat": -6.2088,
		"delivery_lng": 106.8456,
		"voucher_code": "HEMAT10"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withActor(req, customerID, enums.ActorRoleCustomer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, customerID, svc.created.CustomerID)
	assert.Equal(t, "HEMAT10", svc.created.VoucherCode)
	require.Len(t, svc.created.Items, 1)
	assert.Equal(t, 2, svc.created.Items[0].Qty)

	var envelope struct {
		Data orderView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(131000), envelope.Data.TotalCents)
}

func TestCreateOrderHandlerRejectsNonCustomers(t *testing.T) {
	svc := &fakeOrderService{}
	handler := CreateOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req = withActor(req, uuid.New(), enums.ActorRoleDriver)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, svc.created)
}

func TestCreateOrderHandlerValidatesBody(t *testing.T) {
	svc := &fakeOrderService{}
	handler := CreateOrder(svc, testLogger())

	// items missing
	body := `{"merchant_id": "` + uuid.NewString() + `", "delivery_address": "x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withActor(req, uuid.New(), enums.ActorRoleCustomer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestTransitionOrderHandlerRejectsUnknownStatus(t *testing.T) {
	svc := &fakeOrderService{}
	handler := TransitionOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/x/status", strings.NewReader(`{"status":"teleported"}`))
	req = withActor(req, uuid.New(), enums.ActorRoleMerchant)
	req = withOrderParam(req, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.transitioned)
}

func TestCancelOrderHandler(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	svc := &fakeOrderService{order: sampleOrder(customerID)}
	handler := CancelOrder(svc, testLogger())

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/x/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req = withActor(req, customerID, enums.ActorRoleCustomer)
	req = withOrderParam(req, orderID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.cancelled)
	assert.Equal(t, orderID, svc.cancelled.OrderID)
	assert.Equal(t, "changed my mind", svc.cancelled.Reason)
}

func TestListOrdersHandlerScopesByRole(t *testing.T) {
	customerID := uuid.New()
	svc := &fakeOrderService{order: sampleOrder(customerID)}
	handler := ListOrders(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=10", nil)
	req = withActor(req, customerID, enums.ActorRoleCustomer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	admin = withActor(admin, uuid.New(), enums.ActorRoleAdmin)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, admin)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
