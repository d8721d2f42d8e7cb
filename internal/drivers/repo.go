package drivers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
)

// Repository defines persistence operations for driver profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.DriverProfile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error
	// TransitionStatus flips status only when the current value matches.
	// Returns the number of rows changed so callers can detect lost races.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DriverStatus) (int64, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
	IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a drivers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DriverStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DriverProfile{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DriverStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DriverProfile{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	return r.db.WithContext(ctx).
		Model(&models.DriverProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{"current_lat": lat, "current_lng": lng}).Error
}

func (r *repository) IncrementCompletedJobs(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DriverProfile{}).
		Where("id = ?", id).
		Update("completed_jobs", gorm.Expr("completed_jobs + 1")).Error
}
