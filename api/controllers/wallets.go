package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/middleware"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/validators"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/wallets"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pagination"
)

// WalletBalance returns the cached balance. Owners read their own wallet;
// admins read anyone's.
func WalletBalance(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorizeWalletRead(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceView{
			UserID:       wallet.UserID,
			BalanceCents: wallet.BalanceCents,
			PendingCents: wallet.PendingCents,
		})
	}
}

// WalletTransactions pages through the ledger, newest first.
func WalletTransactions(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorizeWalletRead(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rows, next, err := svc.ListTransactions(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageView{Items: newTransactionViews(rows), NextCursor: next})
	}
}

func authorizeWalletRead(r *http.Request) (uuid.UUID, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	raw := strings.TrimSpace(chi.URLParam(r, "userId"))
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	if actor.ID != userID && actor.Role != enums.ActorRoleAdmin {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet does not belong to caller")
	}
	return userID, nil
}
