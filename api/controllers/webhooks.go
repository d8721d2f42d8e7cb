package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/payments"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/payment"
)

const signatureHeader = "X-Gateway-Signature"

type webhookPayload struct {
	GatewayRef        string `json:"gateway_ref"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	GrossAmountCents  int64  `json:"gross_amount_cents"`
	PaymentMethod     string `json:"payment_method"`
}

// PaymentWebhook ingests gateway callbacks. It always answers 200 so the
// gateway stops retrying; every failure mode is logged and resolved through
// replays, never through the response code.
func PaymentWebhook(svc payments.Service, verifier payment.Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ack := func() {
			responses.WriteSuccess(w, map[string]string{"status": "received"})
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logg.Error(ctx, "read webhook body", err)
			ack()
			return
		}

		if err := verifier.Verify(body, r.Header.Get(signatureHeader)); err != nil {
			logg.Error(ctx, "webhook signature rejected", err)
			ack()
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			logg.Error(ctx, "decode webhook payload", err)
			ack()
			return
		}

		orderID, err := uuid.Parse(payload.OrderID)
		if err != nil {
			logg.Error(ctx, "webhook order id invalid", err)
			ack()
			return
		}

		var method enums.PaymentMethod
		if payload.PaymentMethod != "" {
			parsed, parseErr := enums.ParsePaymentMethod(payload.PaymentMethod)
			if parseErr != nil {
				logg.Error(ctx, "webhook payment method invalid", parseErr)
				ack()
				return
			}
			method = parsed
		}

		input := payments.NotificationInput{
			GatewayRef:        payload.GatewayRef,
			OrderID:           orderID,
			TransactionStatus: payload.TransactionStatus,
			AmountCents:       payload.GrossAmountCents,
			Method:            method,
		}
		if err := svc.HandleNotification(ctx, input); err != nil {
			logg.Error(logg.WithField(ctx, "gateway_ref", payload.GatewayRef), "process payment notification", err)
		}
		ack()
	}
}
