package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/internal/drivers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	dbpkg "github.com/wirashauma/FoodDelivery-app-sub000/pkg/db"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/metrics"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/queue"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderAssigner is the slice of the order service the matching engine uses to
// mutate order state. Assignment semantics (CAS guard, fee overwrite, history)
// live there so both protocols share one implementation.
type orderAssigner interface {
	AssignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, driverProfileID uuid.UUID, deliveryFeeCents int64, actor orders.Actor, note string) error
	ReassignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, newDriverProfileID uuid.UUID, actor orders.Actor, note string) error
}

// CreateInput is a driver's bid on an open order.
type CreateInput struct {
	OrderID          uuid.UUID
	DriverUserID     uuid.UUID
	ProposedFeeCents int64
}

// AcceptInput accepts one pending offer on behalf of the order's customer.
type AcceptInput struct {
	OfferID uuid.UUID
	Actor   orders.Actor
}

// AssignInput is the admin path: direct assignment bypassing bidding.
type AssignInput struct {
	OrderID         uuid.UUID
	DriverProfileID uuid.UUID
	Actor           orders.Actor
	Reason          string
}

// OfferEvent is broadcast on offer lifecycle changes.
type OfferEvent struct {
	OfferID         uuid.UUID `json:"offer_id"`
	OrderID         uuid.UUID `json:"order_id"`
	DriverProfileID uuid.UUID `json:"driver_profile_id"`
	Status          string    `json:"status"`
}

// Service implements both matching protocols: open bidding with customer
// acceptance, and direct admin assignment.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DriverOffer, error)
	Accept(ctx context.Context, input AcceptInput) (*models.Order, error)
	AssignDriver(ctx context.Context, input AssignInput) (*models.Order, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DriverOffer, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	orderRepo    orders.Repository
	orderService orderAssigner
	drivers      drivers.Repository
	events       queue.Publisher
	metrics      *metrics.FulfillmentMetrics
	logg         *logger.Logger
	expiryWindow time.Duration
	now          func() time.Time
}

// Deps bundles the collaborators the offer service needs.
type Deps struct {
	Repo         Repository
	Tx           txRunner
	OrderRepo    orders.Repository
	OrderService orderAssigner
	Drivers      drivers.Repository
	Events       queue.Publisher
	Metrics      *metrics.FulfillmentMetrics
	Logger       *logger.Logger
	ExpiryWindow time.Duration
}

// NewService wires the offer service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("order service required")
	}
	if deps.Drivers == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if deps.Events == nil {
		deps.Events = queue.NoopPublisher{}
	}
	if deps.ExpiryWindow <= 0 {
		deps.ExpiryWindow = 30 * time.Minute
	}
	return &service{
		repo:         deps.Repo,
		tx:           deps.Tx,
		orderRepo:    deps.OrderRepo,
		orderService: deps.OrderService,
		drivers:      deps.Drivers,
		events:       deps.Events,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
		expiryWindow: deps.ExpiryWindow,
		now:          time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.DriverOffer, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ProposedFeeCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposed fee must be positive")
	}

	profile, err := s.drivers.FindByUserID(ctx, input.DriverUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller has no driver profile")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver profile")
	}
	if profile.Status != enums.DriverStatusOnline {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "driver must be online to bid")
	}

	order, err := s.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusReadyForPickup || order.DriverID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not accepting offers").
			WithDetails(map[string]any{"current_status": order.Status.String()})
	}
	if order.CustomerID == profile.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drivers cannot bid on their own orders")
	}

	offer := &models.DriverOffer{
		OrderID:          order.ID,
		DriverProfileID:  profile.ID,
		ProposedFeeCents: input.ProposedFeeCents,
		Status:           enums.OfferStatusPending,
		ExpiresAt:        s.now().Add(s.expiryWindow),
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_driver_offers_order_driver") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "driver already has an offer on this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}

	s.metrics.IncOfferOutcome("submitted")
	s.publish(ctx, "offer.created", input.DriverUserID, enums.ActorRoleDriver, OfferEvent{
		OfferID:         offer.ID,
		OrderID:         offer.OrderID,
		DriverProfileID: offer.DriverProfileID,
		Status:          offer.Status.String(),
	})
	return offer, nil
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*models.Order, error) {
	if input.OfferID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}

	var order *models.Order
	var offer *models.DriverOffer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		offer, txErr = repo.FindByID(ctx, input.OfferID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load offer")
		}
		if offer.Status != enums.OfferStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer pending").
				WithDetails(map[string]any{"offer_status": offer.Status.String()})
		}

		order, txErr = s.orderRepo.WithTx(tx).FindByID(ctx, offer.OrderID)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load order")
		}
		// Only the customer who placed the order picks the winning bid.
		// Admin and system calls pass through for support tooling.
		switch input.Actor.Role {
		case enums.ActorRoleCustomer:
			if order.CustomerID != input.Actor.ID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
			}
		case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the order's customer can accept offers")
		}

		// Expiry is passive: nothing sweeps stale offers, acceptance is the
		// only action gated by it.
		if offer.Expired(s.now()) {
			if _, err := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusExpired); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer")
			}
			s.metrics.IncOfferOutcome("expired")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer has expired")
		}

		if txErr := s.orderService.AssignDriverTx(ctx, tx, order, offer.DriverProfileID, offer.ProposedFeeCents, input.Actor, "offer accepted"); txErr != nil {
			return txErr
		}

		affected, txErr := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "accept offer")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConcurrentModification, "offer changed concurrently")
		}
		offer.Status = enums.OfferStatusAccepted

		if _, txErr := repo.RejectOthers(ctx, offer.OrderID, offer.ID); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "reject sibling offers")
		}
		if txErr := s.drivers.WithTx(tx).UpdateStatus(ctx, offer.DriverProfileID, enums.DriverStatusBusy); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark driver busy")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOfferOutcome("accepted")
	s.publish(ctx, "offer.accepted", input.Actor.ID, input.Actor.Role, OfferEvent{
		OfferID:         offer.ID,
		OrderID:         offer.OrderID,
		DriverProfileID: offer.DriverProfileID,
		Status:          offer.Status.String(),
	})
	return order, nil
}

func (s *service) AssignDriver(ctx context.Context, input AssignInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil || input.DriverProfileID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id required")
	}

	var order *models.Order
	var previousDriver *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		driverRepo := s.drivers.WithTx(tx)
		profile, txErr := driverRepo.FindByID(ctx, input.DriverProfileID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load driver profile")
		}
		if !profile.IsVerified || profile.Status != enums.DriverStatusOnline {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "driver is not available").
				WithDetails(map[string]any{"driver_status": profile.Status.String(), "is_verified": profile.IsVerified})
		}

		order, txErr = s.orderRepo.WithTx(tx).FindByID(ctx, input.OrderID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load order")
		}

		note := input.Reason
		if note == "" {
			note = "driver assigned by admin"
		}

		if order.DriverID == nil {
			if txErr := s.orderService.AssignDriverTx(ctx, tx, order, profile.ID, 0, input.Actor, note); txErr != nil {
				return txErr
			}
		} else {
			previous := *order.DriverID
			previousDriver = &previous
			if txErr := s.orderService.ReassignDriverTx(ctx, tx, order, profile.ID, input.Actor, note); txErr != nil {
				return txErr
			}
			if txErr := driverRepo.UpdateStatus(ctx, previous, enums.DriverStatusOnline); txErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "release previous driver")
			}
		}

		if txErr := driverRepo.UpdateStatus(ctx, profile.ID, enums.DriverStatusBusy); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark driver busy")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOfferOutcome("admin_assigned")
	event := OfferEvent{OrderID: order.ID, DriverProfileID: input.DriverProfileID, Status: "assigned"}
	s.publish(ctx, "order.driver_assigned", input.Actor.ID, input.Actor.Role, event)
	if previousDriver != nil {
		s.publish(ctx, "order.driver_unassigned", input.Actor.ID, input.Actor.Role, OfferEvent{
			OrderID:         order.ID,
			DriverProfileID: *previousDriver,
			Status:          "unassigned",
		})
	}
	return order, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DriverOffer, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	offers, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}

	// Pending bids past their deadline are dead weight for the customer
	// choosing a driver. They stay pending in storage until Accept sweeps
	// them, so hide them here instead of showing unacceptable options.
	now := s.now()
	visible := offers[:0]
	for _, offer := range offers {
		if offer.Status == enums.OfferStatusPending && offer.Expired(now) {
			continue
		}
		visible = append(visible, offer)
	}
	return visible, nil
}

func (s *service) publish(ctx context.Context, eventType string, actorID uuid.UUID, role enums.ActorRole, data any) {
	var actor *queue.ActorRef
	if actorID != uuid.Nil {
		actor = &queue.ActorRef{UserID: actorID, Role: role.String()}
	}
	if err := s.events.Publish(ctx, queue.Event{EventType: eventType, Actor: actor, Data: data}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "publish offer event", err)
	}
}
