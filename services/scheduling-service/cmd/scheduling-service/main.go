package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wctitle/titlebook/libs/config"
	"github.com/wctitle/titlebook/libs/db"
	"github.com/wctitle/titlebook/libs/httpx"
	"github.com/wctitle/titlebook/libs/kafkax"
	otelx "github.com/wctitle/titlebook/libs/otel"
	"github.com/wctitle/titlebook/libs/runtime"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/availability"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/calendar"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/handlers"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/holds"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/outbox"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/places"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := time.LoadLocation(config.String("BUSINESS_TIMEZONE", "America/New_York"))
	if err != nil {
		logger.Error("invalid business timezone", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: config.String("REDIS_ADDR", "localhost:6379"),
	})
	defer rdb.Close()

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	holdStore := holds.NewStore(rdb, config.Minutes("HOLD_TTL_MINUTES", holds.DefaultTTL), loc)

	calendarProvider, err := calendar.NewProvider(config.String("CALENDAR_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("calendar provider init failed; continuing without it", "err", err)
		calendarProvider = nil
	}
	var placesResolver places.Resolver
	if url := config.String("PLACES_URL", ""); url != "" {
		placesResolver = places.NewHTTPResolver(url, config.String("PLACES_TOKEN", ""))
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(
		catalog.Default(),
		repo,
		outboxRepo,
		holdStore,
		calendarProvider,
		placesResolver,
		logger,
		loc,
		availability.Options{
			EnforceLeadingBuffer: config.String("ENFORCE_LEADING_BUFFER", "true") == "true",
		},
	)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/appointment-types", bookingHandler.Types)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/holds", bookingHandler.Hold)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)

	adminKeyHash := config.String("ADMIN_KEY_BCRYPT_HASH", "")
	mux.Handle("/api/v1/appointments", handlers.RequireAdminKey(adminKeyHash, http.HandlerFunc(bookingHandler.List)))
	mux.Handle("/api/v1/appointments/cancel", handlers.RequireAdminKey(adminKeyHash, http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("/api/v1/appointments/reschedule", handlers.RequireAdminKey(adminKeyHash, http.HandlerFunc(bookingHandler.Reschedule)))

	rateLimiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, service)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: []string{config.String("CORS_ALLOWED_ORIGINS", "*")},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Admin-Key"},
		}),
		rateLimiter.Middleware(logger, true),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
