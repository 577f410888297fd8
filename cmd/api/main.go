package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/db"
	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/storage"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	// Configure the encoder to be a console encoder with color
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), lvl)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

//	@title			Storefront API
//	@description	Catalog, checkout and Paystack payments for the storefront.

//	@contact.name	API Support

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from POST /admin/token

//	@securityDefinitions.basic	BasicAuth

func main() {
	envErr := godotenv.Load()

	logger, err := NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Infow("no .env file loaded, using process environment", "error", envErr)
	}

	cfg := loadConfig(logger)

	if cfg.paystack.secretKey == "" {
		logger.Fatal("PAYSTACK_SECRET_KEY is required")
	}
	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.New(cfg.db.addr, int32(cfg.db.maxConns), cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	codes, err := orders.NewCodeGenerator(cfg.orders.codeSalt)
	if err != nil {
		logger.Fatal(err)
	}

	//storage
	store := storage.NewContainer(pool, codes)

	//cloudinary
	cld, err := cloudinary.NewFromURL(cfg.cloudinary)
	if err != nil {
		logger.Fatalw("cloudinary is not configured", "error", err)
	}
	images := newCloudinaryImages(cld, "products")

	// storefront cache
	var storefrontCache cache.StorefrontCache = cache.Nop{}
	if cfg.redis.addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.redis.addr, cfg.redis.password, cfg.redis.db)
		if err != nil {
			logger.Fatal(err)
		}
		defer rdb.Close()
		tiers := []string{string(catalog.TierRetail), string(catalog.TierWholesale)}
		storefrontCache = cache.NewRedisStorefrontCache(rdb, cfg.redis.ttl, tiers, logger)
		logger.Infow("storefront cache enabled", "addr", cfg.redis.addr, "ttl", cfg.redis.ttl)
	}

	// order events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.kafka.brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.kafka.brokers, cfg.kafka.topic, logger)
		logger.Infow("order events enabled", "brokers", cfg.kafka.brokers, "topic", cfg.kafka.topic)
	}
	defer publisher.Close()

	// order e-mails
	var mail mailer.Client = mailer.Nop{}
	if cfg.mail.host != "" {
		mail = mailer.NewSMTP(cfg.mail.host, cfg.mail.port, cfg.mail.username, cfg.mail.password, cfg.mail.fromEmail)
	}

	gateway := payments.NewPaystackAdapter(cfg.paystack.secretKey, cfg.paystack.baseURL, nil)

	checkoutSvc := checkout.NewService(store, gateway, publisher, mail, storefrontCache, logger, checkout.Config{
		Currency:       cfg.paystack.currency,
		CallbackURL:    cfg.paystack.callbackURL,
		ReconcileAfter: cfg.orders.reconcileAfter,
		PendingTTL:     cfg.orders.pendingTTL,
	})
	defer checkoutSvc.Wait()

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
		cfg.auth.token.exp,
	)

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		checkout:      checkoutSvc,
		cache:         storefrontCache,
		images:        images,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]any{
			"acquired_conns": s.AcquiredConns(),
			"idle_conns":     s.IdleConns(),
			"total_conns":    s.TotalConns(),
			"max_conns":      s.MaxConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	app.reconcilePendingOrders(ctx, cfg.orders.reconcileInterval)
	app.sweepRateLimiter(ctx, cfg.rateLimiter.TimeFrame)

	mux := app.mount()

	if err := app.run(mux); err != nil {
		logger.Errorw("server error", "error", err)
	}
}
