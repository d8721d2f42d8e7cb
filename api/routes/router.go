package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/controllers"
	"github.com/wirashauma/FoodDelivery-app-sub000/api/middleware"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/offers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/payments"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/vouchers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/wallets"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/config"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/payment"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pubsub"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	broker *pubsub.Client,
	ordersSvc orders.Service,
	offersSvc offers.Service,
	vouchersSvc vouchers.Service,
	walletsSvc wallets.Service,
	paymentsSvc payments.Service,
	verifier payment.Verifier,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient, broker))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// The gateway authenticates with an HMAC signature, not identity headers.
	r.Post("/api/v1/payment/webhook", controllers.PaymentWebhook(paymentsSvc, verifier, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Get("/{orderId}/history", controllers.OrderHistory(ordersSvc, logg))
			r.Get("/{orderId}/offers", controllers.ListOffersByOrder(offersSvc, logg))
			r.Post("/{orderId}/pay", controllers.PayOrder(ordersSvc, logg))
			r.Patch("/{orderId}/status", controllers.TransitionOrder(ordersSvc, logg))
			r.Patch("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.Patch("/{orderId}/assign-driver", controllers.AssignDriver(offersSvc, logg))
		})

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", controllers.CreateOffer(offersSvc, logg))
			r.Patch("/{offerId}/accept", controllers.AcceptOffer(offersSvc, logg))
		})

		r.Post("/vouchers/validate", controllers.ValidateVoucher(vouchersSvc, logg))

		r.Route("/wallet/{userId}", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletsSvc, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletsSvc, logg))
		})
	})

	return r
}
