package middleware

import (
	"net/http"
	"strings"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/enums"
	pkgerrors "github.com/wirashauma/FoodDelivery-app-sub000/pkg/errors"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
)

const (
	userIDHeader = "X-User-Id"
	roleHeader   = "X-User-Role"
)

// Actor trusts the identity headers stamped by the auth gateway in front of
// this service and rejects requests that arrive without them.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userIDHeader))
			rawRole := strings.TrimSpace(r.Header.Get(roleHeader))

			if userID == "" || rawRole == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
				return
			}
			role, err := enums.ParseActorRole(rawRole)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller role invalid"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = WithRole(ctx, role.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
				ctx = logg.WithActorRole(ctx, role.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
