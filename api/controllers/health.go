package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/responses"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/config"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodRide-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every hard dependency. A single failing check flips the
// probe to 503 so the scheduler stops routing traffic here.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache, broker pinger) http.HandlerFunc {
	checks := []struct {
		name   string
		target pinger
	}{
		{name: "postgres", target: db},
		{name: "redis", target: cache},
		{name: "pubsub", target: broker},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodRide-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := map[string]string{}
		healthy := true
		for _, check := range checks {
			if check.target == nil {
				statuses[check.name] = "not configured"
				continue
			}
			if err := check.target.Ping(ctx); err != nil {
				healthy = false
				statuses[check.name] = "unavailable"
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", check.name), "readiness check failed", err)
				}
				continue
			}
			statuses[check.name] = "ok"
		}

		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": overall,
			"checks": statuses,
		})
	}
}
