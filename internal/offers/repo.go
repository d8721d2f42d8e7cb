package offers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Repository defines persistence operations for driver offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.DriverOffer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DriverOffer, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DriverOffer, error)
	// UpdateStatusIf flips offer status only when the stored value still
	// matches from. Zero rows affected means a concurrent writer won.
	UpdateStatusIf(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus) (int64, error)
	// RejectOthers marks every other pending offer on the order rejected.
	RejectOthers(ctx context.Context, orderID, acceptedOfferID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.DriverOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DriverOffer, error) {
	var offer models.DriverOffer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DriverOffer, error) {
	var offers []models.DriverOffer
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DriverOffer{}).
		Where("id = ? AND status = ?", offerID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) RejectOthers(ctx context.Context, orderID, acceptedOfferID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DriverOffer{}).
		Where("order_id = ? AND id <> ? AND status = ?", orderID, acceptedOfferID, enums.OfferStatusPending).
		Update("status", enums.OfferStatusRejected)
	return res.RowsAffected, res.Error
}
