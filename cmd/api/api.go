package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/docs" //this is required to generate swagger docs
	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/storage"
	"storefront/internal/metrics"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// checkoutService is the order lifecycle as the handlers use it.
type checkoutService interface {
	CreateOrder(ctx context.Context, in checkout.CreateOrderInput) (*checkout.CreateOrderResult, error)
	VerifyPayment(ctx context.Context, reference string) (*checkout.VerifyResult, error)
	HandleWebhook(ctx context.Context, ev payments.WebhookEvent) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to orders.Status) (*orders.Order, error)
	ReconcilePending(ctx context.Context, now time.Time) (checkout.ReconcileReport, error)
}

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	checkout      checkoutService
	cache         cache.StorefrontCache
	images        imageStore
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	//Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(app.BasicAuthMiddleware()).Get("/metrics", metrics.Handler().ServeHTTP)

		// Public storefront
		r.Get("/storefront", app.storefrontHandler)
		r.Get("/categories", app.listCategoriesHandler)
		r.Get("/products/{productID}", app.getProductHandler)

		r.Route("/orders", func(r chi.Router) {
			r.With(app.RateLimiterMiddleware).Post("/", app.createOrderHandler)
			r.Get("/{orderID}", app.getOrderStatusHandler)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/verify", app.verifyPaymentHandler)
			// any method, so non-POST gets the JSON 405 below
			r.HandleFunc("/paystack/webhook", app.paystackWebhookHandler)
		})

		// Admin panel
		r.Route("/admin", func(r chi.Router) {
			r.With(app.RateLimiterMiddleware).Post("/token", app.createAdminTokenHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AdminTokenMiddleware)

				r.Route("/categories", func(r chi.Router) {
					r.Get("/", app.adminListCategoriesHandler)
					r.Post("/", app.createCategoryHandler)
					r.Patch("/{categoryID}", app.updateCategoryHandler)
					r.Delete("/{categoryID}", app.deleteCategoryHandler)
				})

				r.Route("/products", func(r chi.Router) {
					r.Get("/", app.adminListProductsHandler)
					r.Post("/", app.createProductHandler)
					r.Get("/{productID}", app.adminGetProductHandler)
					r.Patch("/{productID}", app.updateProductHandler)
					r.Delete("/{productID}", app.deleteProductHandler)
				})

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", app.adminListOrdersHandler)
					r.Get("/{orderID}", app.adminGetOrderHandler)
					r.Patch("/{orderID}/status", app.adminUpdateOrderStatusHandler)
				})
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
