package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	dbpkg "github.com/wirashauma/FoodDelivery-app-sub000/pkg/db"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/queue"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderConfirmer is the slice of the order service the webhook handler uses
// to advance payment-gated transitions.
type orderConfirmer interface {
	ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor, note string) error
	FailPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor, note string) error
}

// dedupeStore guards webhook replays before the database unique constraint
// gets a chance to. Losing redis only loses the fast path.
type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(gatewayRef string) string
}

// NotificationInput is the parsed gateway callback payload.
type NotificationInput struct {
	GatewayRef        string
	OrderID           uuid.UUID
	TransactionStatus string
	AmountCents       int64
	Method            enums.PaymentMethod
}

// PaymentEvent is broadcast after a notification settles.
type PaymentEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	GatewayRef string    `json:"gateway_ref"`
	Status     string    `json:"status"`
}

// Service processes payment gateway callbacks. Processing is idempotent on
// the gateway reference: replays of a settled notification are no-ops.
type Service interface {
	HandleNotification(ctx context.Context, input NotificationInput) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	orders orders.Repository
	flow   orderConfirmer
	dedupe dedupeStore
	events queue.Publisher
	logg   *logger.Logger
	ttl    time.Duration
	now    func() time.Time
}

// Deps bundles the collaborators the payment service needs.
type Deps struct {
	Repo           Repository
	Tx             txRunner
	OrderRepo      orders.Repository
	OrderService   orderConfirmer
	Dedupe         dedupeStore
	Events         queue.Publisher
	Logger         *logger.Logger
	IdempotencyTTL time.Duration
}

// NewService wires the payment service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
	if deps.Events == nil {
		deps.Events = queue.NoopPublisher{}
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 30 * 24 * time.Hour
	}
	return &service{
		repo:   deps.Repo,
		tx:     deps.Tx,
		orders: deps.OrderRepo,
		flow:   deps.OrderService,
		dedupe: deps.Dedupe,
		events: deps.Events,
		logg:   deps.Logger,
		ttl:    deps.IdempotencyTTL,
		now:    time.Now,
	}, nil
}

type outcome int

const (
	outcomeIgnored outcome = iota
	outcomePaid
	outcomeFailed
)

// classify maps gateway transaction statuses onto the two outcomes the order
// flow cares about. Anything in-flight is ignored until a terminal callback.
func classify(status string) outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "settlement", "capture", "paid", "success":
		return outcomePaid
	case "deny", "cancel", "expire", "failure", "failed":
		return outcomeFailed
	default:
		return outcomeIgnored
	}
}

func (s *service) HandleNotification(ctx context.Context, input NotificationInput) error {
	if strings.TrimSpace(input.GatewayRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference required")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	result := classify(input.TransactionStatus)
	if result == outcomeIgnored {
		if s.logg != nil {
			s.logg.Info(ctx, fmt.Sprintf("ignoring non-terminal payment status %q for %s", input.TransactionStatus, input.GatewayRef))
		}
		return nil
	}

	var dedupeKey string
	if s.dedupe != nil {
		dedupeKey = s.dedupe.WebhookKey(input.GatewayRef)
		fresh, err := s.dedupe.SetNX(ctx, dedupeKey, input.TransactionStatus, s.ttl)
		if err != nil {
			// The unique constraint on gateway_ref remains the authority.
			if s.logg != nil {
				s.logg.Error(ctx, "webhook dedupe store unavailable", err)
			}
			dedupeKey = ""
		} else if !fresh {
			return nil
		}
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var txErr error
		payment, txErr = repo.FindByGatewayRef(ctx, input.GatewayRef)
		switch {
		case txErr == nil:
			if payment.Status != enums.PaymentStatusPending {
				// Replay of an already settled notification.
				payment = nil
				return nil
			}
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			method := input.Method
			if method == "" {
				method = enums.PaymentMethodGateway
			}
			payment = &models.Payment{
				OrderID:     input.OrderID,
				GatewayRef:  input.GatewayRef,
				AmountCents: input.AmountCents,
				Method:      method,
				Status:      enums.PaymentStatusPending,
			}
			if createErr := repo.Create(ctx, payment); createErr != nil {
				if dbpkg.IsUniqueViolation(createErr, "") {
					payment = nil
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create payment")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load payment")
		}

		order, txErr := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment notification")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "load order")
		}

		actor := orders.Actor{Role: enums.ActorRoleSystem}
		switch result {
		case outcomePaid:
			affected, txErr := repo.UpdateStatusIf(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid, map[string]any{"paid_at": s.now()})
			if txErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark payment paid")
			}
			if affected == 0 {
				payment = nil
				return nil
			}
			payment.Status = enums.PaymentStatusPaid
			if orderAwaitingPayment(order.Status) {
				if txErr := s.flow.ConfirmPaymentTx(ctx, tx, order, actor, "payment received"); txErr != nil {
					return txErr
				}
			}
		case outcomeFailed:
			affected, txErr := repo.UpdateStatusIf(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, nil)
			if txErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark payment failed")
			}
			if affected == 0 {
				payment = nil
				return nil
			}
			payment.Status = enums.PaymentStatusFailed
			if orderAwaitingPayment(order.Status) {
				if txErr := s.flow.FailPaymentTx(ctx, tx, order, actor, "payment failed"); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		// Release the dedupe claim so the gateway's retry is not swallowed
		// while nothing got recorded.
		if dedupeKey != "" {
			if delErr := s.dedupe.Del(ctx, dedupeKey); delErr != nil && s.logg != nil {
				s.logg.Error(ctx, "release webhook dedupe key", delErr)
			}
		}
		return err
	}
	if payment == nil {
		return nil
	}

	s.publish(ctx, PaymentEvent{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		GatewayRef: payment.GatewayRef,
		Status:     payment.Status.String(),
	})
	return nil
}

func orderAwaitingPayment(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusPaymentPending
}

func (s *service) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindPaidByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no successful payment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) publish(ctx context.Context, event PaymentEvent) {
	err := s.events.Publish(ctx, queue.Event{
		EventType: "payment." + event.Status,
		Actor:     &queue.ActorRef{Role: enums.ActorRoleSystem.String()},
		Data:      event,
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "publish payment event", err)
	}
}
