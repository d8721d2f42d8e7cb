package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/middleware"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/validators"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/vouchers"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
)

type validateVoucherRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	MerchantID    string `json:"merchant_id" validate:"required,uuid"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"required,gt=0"`
	ItemCount     int    `json:"item_count" validate:"required,gt=0"`
}

type voucherPreview struct {
	Code          string `json:"code"`
	Type          string `json:"type"`
	DiscountCents int64  `json:"discount_cents"`
	FreeDelivery  bool   `json:"free_delivery"`
}

// ValidateVoucher is the pre-checkout preview. It never consumes usage; the
// discount is recomputed and the voucher re-validated when the order commits.
func ValidateVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var req validateVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		merchantID, err := uuid.Parse(req.MerchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id"))
			return
		}

		voucher, err := svc.Validate(r.Context(), vouchers.ValidateInput{
			Code:          req.Code,
			UserID:        actor.ID,
			MerchantID:    merchantID,
			SubtotalCents: req.SubtotalCents,
			ItemCount:     req.ItemCount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, voucherPreview{
			Code:          voucher.Code,
			Type:          voucher.Type.String(),
			DiscountCents: vouchers.ComputeDiscountCents(voucher, req.SubtotalCents),
			FreeDelivery:  voucher.Type == enums.VoucherTypeFreeDelivery,
		})
	}
}
