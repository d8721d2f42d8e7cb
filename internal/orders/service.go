package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirashauma/FoodDelivery-app-sub000/internal/drivers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/merchants"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/pricing"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/vouchers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/wallets"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db/models"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/metrics"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/queue"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pricingQuoter interface {
	QuoteDelivery(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
	SplitEarnings(input pricing.SplitInput) pricing.Split
}

type voucherRedeemer interface {
	Validate(ctx context.Context, input vouchers.ValidateInput) (*models.Voucher, error)
	RedeemTx(ctx context.Context, tx *gorm.DB, voucher *models.Voucher, userID, orderID uuid.UUID) error
}

type voucherFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
}

type walletMover interface {
	CreditTx(ctx context.Context, tx *gorm.DB, input wallets.MoveInput) (*models.WalletTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input wallets.MoveInput) (*models.WalletTransaction, error)
}

// PaidPaymentFinder locates the successful payment for an order, if any.
// Implemented by the payments repository.
type PaidPaymentFinder interface {
	FindPaidByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error
}

// Service owns the order lifecycle. Every mutation runs inside one
// transaction and flips status under a compare-and-swap guard.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	PayWithWallet(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	// AssignDriverTx performs the conditional driver assignment plus history
	// append inside the caller's transaction. Used by the offer engine and
	// the admin assignment path.
	AssignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, driverProfileID uuid.UUID, deliveryFeeCents int64, actor Actor, note string) error
	// ReassignDriverTx swaps the assigned driver inside the caller's
	// transaction, appending a history row under the current status.
	ReassignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, newDriverProfileID uuid.UUID, actor Actor, note string) error
	// ConfirmPaymentTx flips PAYMENT_PENDING (or PENDING) to CONFIRMED inside
	// the caller's transaction. Used by the payment webhook.
	ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, note string) error
	// FailPaymentTx records a failed gateway payment, stepping through
	// PAYMENT_PENDING first when the order is still PENDING.
	FailPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, note string) error
	CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	catalog  merchants.Repository
	driver   drivers.Repository
	pricing  pricingQuoter
	vouchers voucherRedeemer
	lookup   voucherFinder
	wallets  walletMover
	payments PaidPaymentFinder
	events   queue.Publisher
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// Deps bundles the collaborators the order service needs.
type Deps struct {
	Repo          Repository
	Tx            txRunner
	Catalog       merchants.Repository
	Drivers       drivers.Repository
	Pricing       pricingQuoter
	Vouchers      voucherRedeemer
	VoucherFinder voucherFinder
	Wallets       walletMover
	Payments      PaidPaymentFinder
	Events        queue.Publisher
	Metrics       *metrics.FulfillmentMetrics
	Logger        *logger.Logger
}

// NewService wires the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("merchants repository required")
	}
	if deps.Drivers == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if deps.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if deps.Vouchers == nil {
		return nil, fmt.Errorf("vouchers service required")
	}
	if deps.VoucherFinder == nil {
		return nil, fmt.Errorf("voucher finder required")
	}
	if deps.Wallets == nil {
		return nil, fmt.Errorf("wallets service required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("payments finder required")
	}
	if deps.Events == nil {
		deps.Events = queue.NoopPublisher{}
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		catalog:  deps.Catalog,
		driver:   deps.Drivers,
		pricing:  deps.Pricing,
		vouchers: deps.Vouchers,
		lookup:   deps.VoucherFinder,
		wallets:  deps.Wallets,
		payments: deps.Payments,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	merchant, err := s.catalog.FindMerchant(ctx, input.MerchantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	if !merchant.IsOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "merchant is closed")
	}

	items, subtotal, itemCount, err := s.buildItems(ctx, merchant.ID, input.Items)
	if err != nil {
		return nil, err
	}
	if merchant.MinOrderCents > 0 && subtotal < merchant.MinOrderCents {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subtotal below merchant minimum order").
			WithDetails(map[string]any{"min_order_cents": merchant.MinOrderCents, "subtotal_cents": subtotal})
	}

	quote, err := s.pricing.QuoteDelivery(ctx, pricing.QuoteInput{
		MerchantID:       merchant.ID,
		MerchantCity:     merchant.City,
		MerchantLat:      merchant.Lat,
		MerchantLng:      merchant.Lng,
		MerchantRadiusKm: merchant.DeliveryRadiusKm,
		DropLat:          input.DeliveryLat,
		DropLng:          input.DeliveryLng,
	})
	if err != nil {
		return nil, err
	}

	deliveryFee := quote.DeliveryFeeCents
	var voucher *models.Voucher
	var discount int64
	if strings.TrimSpace(input.VoucherCode) != "" {
		voucher, err = s.vouchers.Validate(ctx, vouchers.ValidateInput{
			Code:          input.VoucherCode,
			UserID:        input.CustomerID,
			MerchantID:    merchant.ID,
			SubtotalCents: subtotal,
			ItemCount:     itemCount,
		})
		if err != nil {
			return nil, err
		}
		discount = vouchers.ComputeDiscountCents(voucher, subtotal)
		if voucher.Type == enums.VoucherTypeFreeDelivery {
			deliveryFee = 0
		}
	}

	now := s.now()
	order := &models.Order{
		OrderNumber:        generateOrderNumber(now),
		CustomerID:         input.CustomerID,
		MerchantID:         merchant.ID,
		Status:             enums.OrderStatusPending,
		SubtotalCents:      subtotal,
		DeliveryFeeCents:   deliveryFee,
		ServiceFeeCents:    quote.ServiceFeeCents,
		PlatformFeeCents:   quote.PlatformFeeCents,
		DiscountCents:      discount,
		DeliveryAddress:    input.DeliveryAddress,
		DeliveryLat:        input.DeliveryLat,
		DeliveryLng:        input.DeliveryLng,
		DeliveryDistanceKm: quote.DistanceKm,
		Items:              items,
	}
	order.TotalCents = order.SubtotalCents + order.DeliveryFeeCents +
		order.ServiceFeeCents + order.PlatformFeeCents - order.DiscountCents
	if voucher != nil {
		order.VoucherID = &voucher.ID
	}
	if note := strings.TrimSpace(input.Notes); note != "" {
		order.Notes = &note
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if voucher != nil {
			if err := s.vouchers.RedeemTx(ctx, tx, voucher, input.CustomerID, order.ID); err != nil {
				return err
			}
		}
		history := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    enums.OrderStatusPending,
			Note:      "order created",
			ActorID:   &input.CustomerID,
			ActorRole: enums.ActorRoleCustomer,
		}
		if err := repo.AppendHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.OrderStatusPending.String())
	s.publish(ctx, "order.created", input.CustomerID, enums.ActorRoleCustomer, OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		MerchantID:  order.MerchantID,
		TotalCents:  order.TotalCents,
	})
	return order, nil
}

func (s *service) buildItems(ctx context.Context, merchantID uuid.UUID, inputs []CreateItemInput) ([]models.OrderItem, int64, int, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, item := range inputs {
		if item.ProductID == uuid.Nil {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Qty <= 0 {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.FindProductsByIDs(ctx, merchantID, ids)
	if err != nil {
		return nil, 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(inputs))
	var subtotal int64
	var count int
	for _, item := range inputs {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if !product.IsAvailable {
			return nil, 0, 0, pkgerrors.New(pkgerrors.CodeStateConflict, "product unavailable").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		lineTotal := product.PriceCents * int64(item.Qty)
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            item.Qty,
			TotalCents:     lineTotal,
			Notes:          item.Notes,
		})
		subtotal += lineTotal
		count += item.Qty
	}
	return items, subtotal, count, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	return rows, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID, params)
}

func (s *service) ListByMerchant(ctx context.Context, merchantID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if merchantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	return s.repo.ListByMerchant(ctx, merchantID, params)
}

func (s *service) CountCompletedByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return s.repo.CountCompletedByCustomer(ctx, customerID)
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Target))
	}
	if input.Target == enums.OrderStatusCancelled {
		return s.Cancel(ctx, CancelInput{OrderID: input.OrderID, Actor: input.Actor, Reason: input.Note})
	}

	var order *models.Order
	var fromStatus enums.OrderStatus
	var settled settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		order, txErr = s.loadOrder(ctx, repo, input.OrderID)
		if txErr != nil {
			return txErr
		}
		if txErr := s.authorizeTransition(order, input.Actor, input.Target); txErr != nil {
			return txErr
		}
		if !CanTransition(order.Status, input.Target) {
			return InvalidTransition(order.Status, input.Target)
		}

		from := order.Status
		fromStatus = from
		now := s.now()
		updates := timestampUpdates(input.Target, now)

		if input.Target == enums.OrderStatusCompleted {
			if settled, txErr = s.settleCompletion(ctx, tx, order, updates); txErr != nil {
				return txErr
			}
		}
		if input.Target == enums.OrderStatusRefunded {
			if txErr := s.issueRefund(ctx, tx, order, "order refunded"); txErr != nil {
				return txErr
			}
		}

		affected, txErr := repo.UpdateStatusIf(ctx, order.ID, from, input.Target, updates)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConcurrentModification, "order status changed concurrently")
		}

		order.Status = input.Target
		applyTimestamp(order, input.Target, now)

		history := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    input.Target,
			Note:      input.Note,
			ActorRole: input.Actor.Role,
		}
		if input.Actor.ID != uuid.Nil {
			actorID := input.Actor.ID
			history.ActorID = &actorID
		}
		if txErr := repo.AppendHistory(ctx, history); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "append order history")
		}

		s.observeTransition(order, from, input.Target, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "order.transitioned", input.Actor.ID, input.Actor.Role, OrderTransitionedEvent{
		OrderID:    order.ID,
		FromStatus: fromStatus,
		ToStatus:   order.Status,
	})
	if order.Status == enums.OrderStatusCompleted {
		s.publish(ctx, "order.payout_processed", input.Actor.ID, input.Actor.Role, OrderSettledEvent{
			OrderID:               order.ID,
			MerchantPayoutCents:   settled.merchantPayoutCents,
			DriverEarningsCents:   order.DriverEarningsCents,
			PlatformEarningsCents: order.PlatformEarningsCents,
		})
		if settled.cashbackCents > 0 {
			s.publish(ctx, "order.cashback_granted", input.Actor.ID, input.Actor.Role, CashbackGrantedEvent{
				OrderID:       order.ID,
				CustomerID:    order.CustomerID,
				CashbackCents: settled.cashbackCents,
			})
		}
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		order, txErr = s.loadOrder(ctx, repo, input.OrderID)
		if txErr != nil {
			return txErr
		}
		if input.Actor.Role == enums.ActorRoleCustomer && order.CustomerID != input.Actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if !CanTransition(order.Status, enums.OrderStatusCancelled) {
			return InvalidTransition(order.Status, enums.OrderStatusCancelled)
		}

		from := order.Status
		now := s.now()
		updates := timestampUpdates(enums.OrderStatusCancelled, now)
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			updates["cancel_reason"] = reason
		}
		if input.Actor.ID != uuid.Nil {
			updates["cancelled_by"] = input.Actor.ID
		}

		affected, txErr := repo.UpdateStatusIf(ctx, order.ID, from, enums.OrderStatusCancelled, updates)
		if txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "cancel order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConcurrentModification, "order status changed concurrently")
		}

		order.Status = enums.OrderStatusCancelled
		applyTimestamp(order, enums.OrderStatusCancelled, now)

		history := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    enums.OrderStatusCancelled,
			Note:      input.Reason,
			ActorRole: input.Actor.Role,
		}
		if input.Actor.ID != uuid.Nil {
			actorID := input.Actor.ID
			history.ActorID = &actorID
		}
		if txErr := repo.AppendHistory(ctx, history); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "append order history")
		}

		// A cancelled order with a successful payment gets exactly one
		// compensating wallet credit.
		if txErr := s.issueRefund(ctx, tx, order, "order cancelled"); txErr != nil {
			return txErr
		}

		s.metrics.IncTransition(enums.OrderStatusCancelled.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "order.cancelled", input.Actor.ID, input.Actor.Role, OrderTransitionedEvent{
		OrderID:  order.ID,
		ToStatus: enums.OrderStatusCancelled,
	})
	return order, nil
}

func (s *service) PayWithWallet(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		order, txErr = s.loadOrder(ctx, repo, orderID)
		if txErr != nil {
			return txErr
		}
		if order.CustomerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if !CanTransition(order.Status, enums.OrderStatusConfirmed) {
			return InvalidTransition(order.Status, enums.OrderStatusConfirmed)
		}

		refType := enums.ReferenceTypeOrder
		refID := order.ID
		if _, txErr := s.wallets.DebitTx(ctx, tx, wallets.MoveInput{
			UserID:        order.CustomerID,
			Type:          enums.WalletTransactionTypeDebit,
			AmountCents:   order.TotalCents,
			Description:   fmt.Sprintf("payment for order %s", order.OrderNumber),
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); txErr != nil {
			return txErr
		}

		return s.ConfirmPaymentTx(ctx, tx, order, actor, "paid with wallet")
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, note string) error {
	return s.stepTx(ctx, tx, order, enums.OrderStatusConfirmed, actor, note)
}

func (s *service) FailPaymentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, note string) error {
	if order.Status == enums.OrderStatusPending {
		if err := s.stepTx(ctx, tx, order, enums.OrderStatusPaymentPending, actor, "awaiting payment"); err != nil {
			return err
		}
	}
	return s.stepTx(ctx, tx, order, enums.OrderStatusPaymentFailed, actor, note)
}

// stepTx advances one transition inside the caller's transaction: CAS flip,
// timestamp stamp, one history row.
func (s *service) stepTx(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, actor Actor, note string) error {
	repo := s.repo.WithTx(tx)
	if !CanTransition(order.Status, target) {
		return InvalidTransition(order.Status, target)
	}

	now := s.now()
	updates := timestampUpdates(target, now)
	affected, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, target, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrentModification, "order status changed concurrently")
	}

	order.Status = target
	applyTimestamp(order, target, now)

	history := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    target,
		Note:      note,
		ActorRole: actor.Role,
	}
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		history.ActorID = &actorID
	}
	if err := repo.AppendHistory(ctx, history); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	s.metrics.IncTransition(target.String())
	return nil
}

func (s *service) AssignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, driverProfileID uuid.UUID, deliveryFeeCents int64, actor Actor, note string) error {
	repo := s.repo.WithTx(tx)
	if order.DriverID != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a driver assigned")
	}
	if !CanTransition(order.Status, enums.OrderStatusDriverAssigned) {
		return InvalidTransition(order.Status, enums.OrderStatusDriverAssigned)
	}

	updates := timestampUpdates(enums.OrderStatusDriverAssigned, s.now())
	if deliveryFeeCents > 0 && deliveryFeeCents != order.DeliveryFeeCents {
		newTotal := order.TotalCents - order.DeliveryFeeCents + deliveryFeeCents
		updates["delivery_fee_cents"] = deliveryFeeCents
		updates["total_cents"] = newTotal
		order.DeliveryFeeCents = deliveryFeeCents
		order.TotalCents = newTotal
	}

	affected, err := repo.AssignDriverIf(ctx, order.ID, driverProfileID, order.Status, enums.OrderStatusDriverAssigned, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a driver assigned")
	}

	order.Status = enums.OrderStatusDriverAssigned
	order.DriverID = &driverProfileID

	history := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    enums.OrderStatusDriverAssigned,
		Note:      note,
		ActorRole: actor.Role,
	}
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		history.ActorID = &actorID
	}
	if err := repo.AppendHistory(ctx, history); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	s.metrics.IncTransition(enums.OrderStatusDriverAssigned.String())
	return nil
}

func (s *service) ReassignDriverTx(ctx context.Context, tx *gorm.DB, order *models.Order, newDriverProfileID uuid.UUID, actor Actor, note string) error {
	repo := s.repo.WithTx(tx)
	if order.DriverID == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no driver to replace")
	}
	if order.Status != enums.OrderStatusDriverAssigned {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "driver can only be replaced while assigned").
			WithDetails(map[string]any{"current_status": order.Status.String()})
	}

	affected, err := repo.ReassignDriverIf(ctx, order.ID, *order.DriverID, newDriverProfileID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign driver")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrentModification, "order driver changed concurrently")
	}
	order.DriverID = &newDriverProfileID

	history := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    order.Status,
		Note:      note,
		ActorRole: actor.Role,
	}
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		history.ActorID = &actorID
	}
	if err := repo.AppendHistory(ctx, history); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	return nil
}

// settlement records the amounts moved at completion so the caller can
// publish them after the transaction commits.
type settlement struct {
	merchantPayoutCents int64
	cashbackCents       int64
}

// settleCompletion computes the earnings split, stores it on the order row
// and credits the merchant and driver wallets. Runs in the completion
// transaction so settlement and the status flip commit together.
func (s *service) settleCompletion(ctx context.Context, tx *gorm.DB, order *models.Order, updates map[string]any) (settlement, error) {
	var settled settlement

	merchant, err := s.catalog.WithTx(tx).FindMerchant(ctx, order.MerchantID)
	if err != nil {
		return settled, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant for settlement")
	}

	split := s.pricing.SplitEarnings(pricing.SplitInput{
		SubtotalCents:     order.SubtotalCents,
		DeliveryFeeCents:  order.DeliveryFeeCents,
		ServiceFeeCents:   order.ServiceFeeCents,
		PlatformFeeCents:  order.PlatformFeeCents,
		CommissionRatePct: merchant.CommissionRatePct,
	})
	updates["merchant_commission_cents"] = split.MerchantCommissionCents
	updates["driver_earnings_cents"] = split.DriverEarningsCents
	updates["platform_earnings_cents"] = split.PlatformEarningsCents
	order.MerchantCommissionCents = split.MerchantCommissionCents
	order.DriverEarningsCents = split.DriverEarningsCents
	order.PlatformEarningsCents = split.PlatformEarningsCents

	refType := enums.ReferenceTypePayout
	refID := order.ID

	payout := order.SubtotalCents - split.MerchantCommissionCents
	if payout > 0 {
		if _, err := s.wallets.CreditTx(ctx, tx, wallets.MoveInput{
			UserID:        merchant.OwnerUserID,
			Type:          enums.WalletTransactionTypeCredit,
			AmountCents:   payout,
			Description:   fmt.Sprintf("payout for order %s", order.OrderNumber),
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); err != nil {
			return settled, err
		}
		settled.merchantPayoutCents = payout
	}

	if order.DriverID != nil && split.DriverEarningsCents > 0 {
		profile, err := s.driver.WithTx(tx).FindByID(ctx, *order.DriverID)
		if err != nil {
			return settled, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver for settlement")
		}
		if _, err := s.wallets.CreditTx(ctx, tx, wallets.MoveInput{
			UserID:        profile.UserID,
			Type:          enums.WalletTransactionTypeCredit,
			AmountCents:   split.DriverEarningsCents,
			Description:   fmt.Sprintf("delivery earnings for order %s", order.OrderNumber),
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); err != nil {
			return settled, err
		}
		if err := s.driver.WithTx(tx).IncrementCompletedJobs(ctx, profile.ID); err != nil {
			return settled, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment completed jobs")
		}
		if _, err := s.driver.WithTx(tx).TransitionStatus(ctx, profile.ID, enums.DriverStatusBusy, enums.DriverStatusOnline); err != nil {
			return settled, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release driver")
		}
	}

	cashback, err := s.payCashback(ctx, tx, order)
	if err != nil {
		return settled, err
	}
	settled.cashbackCents = cashback
	return settled, nil
}

func (s *service) payCashback(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	if order.VoucherID == nil {
		return 0, nil
	}
	voucher, err := s.lookup.FindByID(ctx, *order.VoucherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher for cashback")
	}
	cashback := vouchers.CashbackCents(voucher, order.SubtotalCents)
	if cashback <= 0 {
		return 0, nil
	}
	refType := enums.ReferenceTypeCashback
	refID := order.ID
	if _, err := s.wallets.CreditTx(ctx, tx, wallets.MoveInput{
		UserID:        order.CustomerID,
		Type:          enums.WalletTransactionTypeCredit,
		AmountCents:   cashback,
		Description:   fmt.Sprintf("cashback for order %s", order.OrderNumber),
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}); err != nil {
		return 0, err
	}
	return cashback, nil
}

// issueRefund credits the customer back the full total when a successful
// payment exists. No payment means nothing to compensate.
func (s *service) issueRefund(ctx context.Context, tx *gorm.DB, order *models.Order, description string) error {
	payment, err := s.payments.FindPaidByOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment for refund")
	}

	refType := enums.ReferenceTypeRefund
	refID := order.ID
	if _, err := s.wallets.CreditTx(ctx, tx, wallets.MoveInput{
		UserID:        order.CustomerID,
		Type:          enums.WalletTransactionTypeCredit,
		AmountCents:   payment.AmountCents,
		Description:   fmt.Sprintf("%s %s", description, order.OrderNumber),
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}); err != nil {
		return err
	}
	return s.payments.MarkRefunded(ctx, tx, payment.ID)
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) authorizeRead(ctx context.Context, order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem, enums.ActorRoleMerchant, enums.ActorRoleDriver:
		return nil
	case enums.ActorRoleCustomer:
		if order.CustomerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
}

func (s *service) authorizeTransition(order *models.Order, actor Actor, target enums.OrderStatus) error {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleMerchant, enums.ActorRoleDriver:
		return nil
	case enums.ActorRoleCustomer:
		// Customers only advance orders through cancellation or payment.
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers cannot change order status directly")
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
}

func (s *service) observeTransition(order *models.Order, from, to enums.OrderStatus, now time.Time) {
	s.metrics.IncTransition(to.String())
	if to == enums.OrderStatusDelivered && order.ConfirmedAt != nil {
		s.metrics.ObserveDeliveryDuration(now.Sub(*order.ConfirmedAt))
	}
}

func (s *service) publish(ctx context.Context, eventType string, actorID uuid.UUID, role enums.ActorRole, data any) {
	var actor *queue.ActorRef
	if actorID != uuid.Nil {
		actor = &queue.ActorRef{UserID: actorID, Role: role.String()}
	}
	if err := s.events.Publish(ctx, queue.Event{EventType: eventType, Actor: actor, Data: data}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "publish order event", err)
	}
}

func generateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("FD-%s-%s", now.Format("20060102"), suffix)
}
