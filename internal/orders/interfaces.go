package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

// Repository defines persistence operations for orders and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateStatusIf flips status only when the stored value still matches
	// from, applying extra column updates in the same statement. Returns rows
	// affected; zero means a concurrent writer got there first.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	// AssignDriverIf sets the driver only while driver_id is still NULL and
	// the status matches, in one conditional statement.
	AssignDriverIf(ctx context.Context, orderID, driverProfileID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	// ReassignDriverIf swaps the driver only while the stored driver still
	// matches fromDriver and the order sits in DRIVER_ASSIGNED.
	ReassignDriverIf(ctx context.Context, orderID, fromDriver, toDriver uuid.UUID) (int64, error)
	AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
}
