package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
)

// Response views decouple the wire shape from the gorm models. Monetary
// fields stay integer cents end to end.

type orderView struct {
	ID                 uuid.UUID       `json:"id"`
	OrderNumber        string          `json:"order_number"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	MerchantID         uuid.UUID       `json:"merchant_id"`
	DriverID           *uuid.UUID      `json:"driver_id,omitempty"`
	Status             string          `json:"status"`
	SubtotalCents      int64           `json:"subtotal_cents"`
	DeliveryFeeCents   int64           `json:"delivery_fee_cents"`
	ServiceFeeCents    int64           `json:"service_fee_cents"`
	PlatformFeeCents   int64           `json:"platform_fee_cents"`
	DiscountCents      int64           `json:"discount_cents"`
	TotalCents         int64           `json:"total_cents"`
	DeliveryAddress    string          `json:"delivery_address"`
	DeliveryDistanceKm float64         `json:"delivery_distance_km"`
	VoucherID          *uuid.UUID      `json:"voucher_id,omitempty"`
	CancelReason       *string         `json:"cancel_reason,omitempty"`
	Items              []orderItemView `json:"items,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type orderItemView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	TotalCents     int64     `json:"total_cents"`
	Notes          string    `json:"notes,omitempty"`
}

func newOrderView(order *models.Order) orderView {
	view := orderView{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		CustomerID:         order.CustomerID,
		MerchantID:         order.MerchantID,
		DriverID:           order.DriverID,
		Status:             order.Status.String(),
		SubtotalCents:      order.SubtotalCents,
		DeliveryFeeCents:   order.DeliveryFeeCents,
		ServiceFeeCents:    order.ServiceFeeCents,
		PlatformFeeCents:   order.PlatformFeeCents,
		DiscountCents:      order.DiscountCents,
		TotalCents:         order.TotalCents,
		DeliveryAddress:    order.DeliveryAddress,
		DeliveryDistanceKm: order.DeliveryDistanceKm,
		VoucherID:          order.VoucherID,
		CancelReason:       order.CancelReason,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
			Notes:          item.Notes,
		})
	}
	return view
}

func newOrderViews(rows []models.Order) []orderView {
	views := make([]orderView, 0, len(rows))
	for i := range rows {
		views = append(views, newOrderView(&rows[i]))
	}
	return views
}

type historyView struct {
	Status    string     `json:"status"`
	Note      string     `json:"note,omitempty"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ActorRole string     `json:"actor_role"`
	CreatedAt time.Time  `json:"created_at"`
}

func newHistoryViews(rows []models.OrderStatusHistory) []historyView {
	views := make([]historyView, 0, len(rows))
	for _, row := range rows {
		views = append(views, historyView{
			Status:    row.Status.String(),
			Note:      row.Note,
			ActorID:   row.ActorID,
			ActorRole: row.ActorRole.String(),
			CreatedAt: row.CreatedAt,
		})
	}
	return views
}

type offerView struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	DriverProfileID  uuid.UUID `json:"driver_profile_id"`
	ProposedFeeCents int64     `json:"proposed_fee_cents"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

func newOfferView(offer *models.DriverOffer) offerView {
	return offerView{
		ID:               offer.ID,
		OrderID:          offer.OrderID,
		DriverProfileID:  offer.DriverProfileID,
		ProposedFeeCents: offer.ProposedFeeCents,
		Status:           offer.Status.String(),
		ExpiresAt:        offer.ExpiresAt,
		CreatedAt:        offer.CreatedAt,
	}
}

func newOfferViews(rows []models.DriverOffer) []offerView {
	views := make([]offerView, 0, len(rows))
	for i := range rows {
		views = append(views, newOfferView(&rows[i]))
	}
	return views
}

type balanceView struct {
	UserID       uuid.UUID `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	PendingCents int64     `json:"pending_cents"`
}

type transactionView struct {
	ID                 uuid.UUID  `json:"id"`
	Type               string     `json:"type"`
	AmountCents        int64      `json:"amount_cents"`
	BalanceBeforeCents int64      `json:"balance_before_cents"`
	BalanceAfterCents  int64      `json:"balance_after_cents"`
	Description        string     `json:"description"`
	ReferenceID        *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newTransactionViews(rows []models.WalletTransaction) []transactionView {
	views := make([]transactionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, transactionView{
			ID:                 row.ID,
			Type:               row.Type.String(),
			AmountCents:        row.AmountCents,
			BalanceBeforeCents: row.BalanceBeforeCents,
			BalanceAfterCents:  row.BalanceAfterCents,
			Description:        row.Description,
			ReferenceID:        row.ReferenceID,
			CreatedAt:          row.CreatedAt,
		})
	}
	return views
}

type pageView struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
