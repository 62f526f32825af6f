package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	if err := start(); err != nil {
		log.Fatalf("storefront: %v", err)
	}
}

// start fails before the zap logger exists when configuration is bad, so main
// reports those errors through the standard logger.
func start() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Error("storefront_stopped", zap.Error(err))
		return err
	}
	return nil
}

type repositories struct {
	carts    *repository.CartRepository
	orders   *repository.OrderRepository
	payments *repository.PaymentRepository
	products *repository.ProductRepository
	reviews  *repository.ReviewRepository
	users    *repository.UserRepository
	links    *repository.LinkRepository
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Error("store_close_failed", zap.Error(err))
		}
	}()

	repos, err := newRepositories(ctx, st)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "storefront")

	catalogCache, linkCache, closeRedis := newCaches(cfg, log)
	defer closeRedis()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaWriteTimeout, cfg.KafkaBrokers...)
		log.Info("kafka_publisher_enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("publisher_close_failed", zap.Error(err))
		}
	}()

	settler := service.NewSettler(repos.products, log, m)
	carts := service.NewCartService(repos.carts, log, m)
	orders := service.NewOrderService(repos.orders, repos.carts, repos.products, publisher, log, m)
	payments := service.NewPaymentService(repos.payments, repos.orders, settler, publisher, log, m)
	catalog := service.NewCatalogService(repos.products, catalogCache, cfg.CacheOpTimeout, log, m)
	reviews := service.NewReviewService(repos.reviews, repos.products, log)
	users := service.NewUserService(repos.users, log)
	links := service.NewLinkService(repos.links, linkCache, cfg.CacheOpTimeout, log, m)

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		ServiceName:    cfg.ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		Validator:      auth.NewValidator(cfg.JWTSecret),
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
	}, httpapi.Handlers{
		Products: httpapi.NewProductHandler(catalog, log, cfg.RequestTimeout),
		Carts:    httpapi.NewCartHandler(carts, log, cfg.RequestTimeout),
		Orders:   httpapi.NewOrderHandler(orders, log, cfg.RequestTimeout),
		Payments: httpapi.NewPaymentHandler(payments, log, cfg.RequestTimeout),
		Reviews:  httpapi.NewReviewHandler(reviews, log, cfg.RequestTimeout),
		Users:    httpapi.NewUserHandler(users, log, cfg.RequestTimeout),
		Links:    httpapi.NewLinkHandler(links, log, cfg.RequestTimeout),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http_server_starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info("shutting_down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server_exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := store.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	log.Info("mongodb_connected", zap.String("database", cfg.MongoDBName))
	return store.NewMongoStore(db, cfg.StoreOpTimeout, log), nil
}

func newRepositories(ctx context.Context, st store.Store) (*repositories, error) {
	var (
		r   repositories
		err error
	)
	if r.carts, err = repository.NewCartRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.orders, err = repository.NewOrderRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.payments, err = repository.NewPaymentRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.products, err = repository.NewProductRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.reviews, err = repository.NewReviewRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.users, err = repository.NewUserRepository(ctx, st); err != nil {
		return nil, err
	}
	if r.links, err = repository.NewLinkRepository(ctx, st); err != nil {
		return nil, err
	}
	return &r, nil
}

// newCaches returns the catalog and link caches. Without REDIS_ADDR both are no-ops
// and every read goes to the store.
func newCaches(cfg *config.Config, log *zap.Logger) (cache.TTLCache, cache.TTLCache, func()) {
	if cfg.RedisAddr == "" {
		log.Warn("redis not configured, caching disabled")
		return cache.Nop{}, cache.Nop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	catalog := cache.NewBreakerCache(cache.NewRedisCache(client, "catalog", cfg.CatalogCacheTTL), cache.BreakerSettings{Name: "catalog"}, log)
	links := cache.NewBreakerCache(cache.NewRedisCache(client, "links", cfg.LinkCacheTTL), cache.BreakerSettings{Name: "links"}, log)
	return catalog, links, func() {
		if err := client.Close(); err != nil {
			log.Error("redis_close_failed", zap.Error(err))
		}
	}
}
