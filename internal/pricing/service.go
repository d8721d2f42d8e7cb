package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/config"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
)

// ZoneFinder resolves the fee bracket covering a distance within a city.
type ZoneFinder interface {
	FindZoneForDistance(ctx context.Context, city string, distanceKm float64) (*models.DeliveryZone, error)
}

// Quote is the fee breakdown for a candidate delivery.
type Quote struct {
	DistanceKm       float64
	DeliveryFeeCents int64
	ServiceFeeCents  int64
	PlatformFeeCents int64
}

// QuoteInput identifies the pickup/drop pair to price. MerchantRadiusKm caps
// the serviceable distance for this merchant; zero defers to the global cap.
type QuoteInput struct {
	MerchantID       uuid.UUID
	MerchantCity     string
	MerchantLat      float64
	MerchantLng      float64
	MerchantRadiusKm float64
	DropLat          float64
	DropLng          float64
}

// SplitInput carries the figures the earnings split derives from.
type SplitInput struct {
	SubtotalCents     int64
	DeliveryFeeCents  int64
	ServiceFeeCents   int64
	PlatformFeeCents  int64
	CommissionRatePct decimal.Decimal
}

// Split is the settlement breakdown written to the order at completion.
type Split struct {
	MerchantCommissionCents int64
	DriverEarningsCents     int64
	PlatformEarningsCents   int64
}

// Service prices deliveries and computes settlement splits.
type Service interface {
	QuoteDelivery(ctx context.Context, input QuoteInput) (*Quote, error)
	SplitEarnings(input SplitInput) Split
}

type service struct {
	zones ZoneFinder
	cfg   config.PricingConfig
}

// NewService wires a pricing service. The zone finder may serve overrides from
// any storage; fee math itself is pure.
func NewService(zones ZoneFinder, cfg config.PricingConfig) (Service, error) {
	if zones == nil {
		return nil, fmt.Errorf("zone finder required")
	}
	return &service{zones: zones, cfg: cfg}, nil
}

func (s *service) QuoteDelivery(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}

	distance := DistanceKm(input.MerchantLat, input.MerchantLng, input.DropLat, input.DropLng)

	maxRadius := input.MerchantRadiusKm
	if maxRadius <= 0 {
		maxRadius = s.cfg.MaxRadiusKm
	}
	if OutOfRange(distance, maxRadius) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery location outside merchant radius").
			WithDetails(map[string]any{"distance_km": distance, "max_radius_km": maxRadius})
	}

	base := s.cfg.BaseFeeCents
	perKm := s.cfg.PerKmFeeCents
	if input.MerchantCity != "" {
		zone, err := s.zones.FindZoneForDistance(ctx, input.MerchantCity, distance)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery zone")
		}
		if zone != nil {
			base = zone.BaseFeeCents
			perKm = zone.PerKmFeeCents
		}
	}

	return &Quote{
		DistanceKm:       distance,
		DeliveryFeeCents: DeliveryFeeCents(distance, base, perKm),
		ServiceFeeCents:  s.cfg.ServiceFeeCents,
		PlatformFeeCents: s.cfg.PlatformFeeCents,
	}, nil
}

func (s *service) SplitEarnings(input SplitInput) Split {
	commission := decimal.NewFromInt(input.SubtotalCents).
		Mul(input.CommissionRatePct).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	share := s.cfg.DriverSharePct
	if share < 0 {
		share = 0
	}
	if share > 100 {
		share = 100
	}
	driver := decimal.NewFromInt(input.DeliveryFeeCents).
		Mul(decimal.NewFromInt(int64(share))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	platform := commission + input.ServiceFeeCents + input.PlatformFeeCents +
		(input.DeliveryFeeCents - driver)

	return Split{
		MerchantCommissionCents: commission,
		DriverEarningsCents:     driver,
		PlatformEarningsCents:   platform,
	}
}
