package notify

import (
	"context"
	"fmt"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/queue"
)

// pushWorthy lists the event types that should also reach the notification
// topic as push jobs. Everything else only lands on the jobs topic.
var pushWorthy = map[string]string{
	"order.created":          "push.order_created",
	"order.transitioned":     "push.order_status",
	"order.cancelled":        "push.order_cancelled",
	"offer.created":          "push.offer_received",
	"offer.accepted":         "push.offer_accepted",
	"order.driver_assigned":  "push.driver_assigned",
	"payment.paid":           "push.payment_received",
	"payment.failed":         "push.payment_failed",
	"order.payout_processed": "push.payout_processed",
	"order.cashback_granted": "push.cashback_granted",
}

// Dispatcher fans domain events out to the jobs topic and, for customer- and
// driver-facing lifecycle moments, to the notification topic. It satisfies
// queue.Publisher so services stay unaware of the fan-out.
//
// Dispatch is fire and forget: a broken broker never fails the transaction
// that produced the event.
type Dispatcher struct {
	jobs   queue.Publisher
	pushes queue.Publisher
	logg   *logger.Logger
}

func NewDispatcher(jobs, pushes queue.Publisher, logg *logger.Logger) (*Dispatcher, error) {
	if jobs == nil {
		return nil, fmt.Errorf("jobs publisher required")
	}
	if pushes == nil {
		pushes = queue.NoopPublisher{}
	}
	return &Dispatcher{jobs: jobs, pushes: pushes, logg: logg}, nil
}

func (d *Dispatcher) Publish(ctx context.Context, event queue.Event) error {
	if err := d.jobs.Publish(ctx, event); err != nil {
		d.logError(ctx, "enqueue job event", event.EventType, err)
	}

	pushType, ok := pushWorthy[event.EventType]
	if !ok {
		return nil
	}
	push := event
	push.EventType = pushType
	if err := d.pushes.Publish(ctx, push); err != nil {
		d.logError(ctx, "enqueue push notification", pushType, err)
	}
	return nil
}

func (d *Dispatcher) logError(ctx context.Context, msg, eventType string, err error) {
	if d.logg == nil {
		return
	}
	ctx = d.logg.WithField(ctx, "event_type", eventType)
	d.logg.Error(ctx, msg, err)
}
