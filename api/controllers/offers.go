package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/middleware"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/validators"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/offers"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
)

type createOfferRequest struct {
	OrderID          string `json:"order_id" validate:"required,uuid"`
	ProposedFeeCents int64  `json:"proposed_fee_cents" validate:"required,gt=0"`
}

// CreateOffer lets an online driver bid on an order awaiting pickup.
func CreateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}
		if actor.Role != enums.ActorRoleDriver {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can submit offers"))
			return
		}

		var req createOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		offer, err := svc.Create(r.Context(), offers.CreateInput{
			OrderID:          orderID,
			DriverUserID:     actor.ID,
			ProposedFeeCents: req.ProposedFeeCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOfferView(offer))
	}
}

// AcceptOffer picks the winning bid; every sibling offer is rejected in the
// same transaction.
func AcceptOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "offerId"))
		offerID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid offer id"))
			return
		}

		order, err := svc.Accept(r.Context(), offers.AcceptInput{
			OfferID: offerID,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// ListOffersByOrder returns the open bids on an order, expired ones filtered.
func ListOffersByOrder(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOfferViews(rows))
	}
}

type assignDriverRequest struct {
	DriverProfileID string `json:"driver_profile_id" validate:"required,uuid"`
	Reason          string `json:"reason" validate:"max=500"`
}

// AssignDriver is the admin override that bypasses bidding. Reassignment of
// an already-assigned order releases the previous driver.
func AssignDriver(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}
		if actor.Role != enums.ActorRoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can assign drivers"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignDriverRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverProfileID, err := uuid.Parse(req.DriverProfileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver profile id"))
			return
		}

		order, err := svc.AssignDriver(r.Context(), offers.AssignInput{
			OrderID:         orderID,
			DriverProfileID: driverProfileID,
			Actor:           actor,
			Reason:          strings.TrimSpace(req.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}
