// Package http exposes the storefront services over a chi router.
package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
	Reviews  *ReviewHandler
	Users    *UserHandler
	Links    *LinkHandler
}

type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	Validator      *auth.Validator
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Timeout(orDefault(cfg.RequestTimeout)))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": cfg.ServiceName,
		})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/l/{code}", h.Links.Redirect)

	authn := auth.Middleware(cfg.Validator, denyAuth)
	sellers := auth.RequireRole(denyAuth, domain.RoleSeller)
	admins := auth.RequireRole(denyAuth, domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.ListProducts)
			r.Get("/sellers/{sellerID}", h.Products.ListBySeller)
			r.Get("/{productID}/partition-key", h.Products.GetPartitionKey)
			r.Get("/{productID}/sellers/{sellerID}", h.Products.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(authn, sellers)
				r.Post("/", h.Products.CreateProduct)
				r.Put("/{productID}/sellers/{sellerID}", h.Products.UpdateProduct)
				r.Delete("/{productID}/sellers/{sellerID}", h.Products.DeleteProduct)
			})
		})

		r.Get("/reviews/products/{productID}", h.Reviews.ListByProduct)
		r.Post("/users", h.Users.Register)
		r.Post("/users/credentials/verify", h.Users.VerifyCredentials)

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/carts", func(r chi.Router) {
				r.Post("/users/{userID}", h.Carts.CreateCart)
				r.Get("/users/{userID}", h.Carts.GetCartByUser)
				r.Get("/{cartID}/users/{userID}", h.Carts.GetCart)
				r.Post("/users/{userID}/items", h.Carts.AddItem)
				r.Put("/users/{userID}/items/{productID}", h.Carts.UpdateQuantity)
				r.Delete("/users/{userID}/items/{productID}", h.Carts.RemoveItem)
				r.Delete("/users/{userID}/items", h.Carts.ClearItems)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.Orders.CreateOrder)
				r.Post("/checkout", h.Orders.Checkout)
				r.Get("/buyers/{buyerID}", h.Orders.ListByBuyer)
				r.Get("/sellers/{sellerID}", h.Orders.ListBySeller)
				r.With(sellers).Get("/products/{productID}", h.Orders.ListByProduct)
				r.Get("/{orderID}/partition-key", h.Orders.GetPartitionKey)
				r.Get("/{orderID}/buyers/{buyerID}", h.Orders.GetOrder)
				r.Put("/{orderID}/buyers/{buyerID}/status", h.Orders.UpdateStatus)
				r.With(admins).Delete("/{orderID}/buyers/{buyerID}", h.Orders.DeleteOrder)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", h.Payments.CreatePayment)
				r.Get("/orders/{orderID}", h.Payments.ListByOrder)
				r.Get("/{paymentID}/orders/{orderID}", h.Payments.GetPayment)
				r.With(admins).Put("/{paymentID}/orders/{orderID}/status", h.Payments.UpdateStatus)
			})

			r.Post("/reviews", h.Reviews.CreateReview)
			r.With(admins).Delete("/reviews/{reviewID}/products/{productID}", h.Reviews.DeleteReview)
			r.Get("/users/{email}", h.Users.GetUser)
			r.Post("/links", h.Links.CreateLink)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
