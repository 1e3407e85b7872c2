package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/auth"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/config"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/content"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/httpapi"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/redisx"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("setup telemetry", zap.Error(err))
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer backend.Close()
	logger.Info("store ready", zap.String("backend", cfg.Store.Backend))

	var publisher market.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, 1024, logger.Named("kafka"))
		producer.Start(context.Background())
		publisher = events.NewPublisher(producer, cfg.Telemetry.ServiceName)
		logger.Info("publishing events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	deps := httpapi.Deps{Logger: logger}
	if cfg.Redis.Addr != "" {
		rdb, err := redisx.New(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		deps.Idempotency = redisx.NewPurchaseKeys(rdb, cfg.Redis.IdempotencyTTL)
	}

	opts := []market.Option{
		market.WithPublisher(publisher),
		market.WithLogger(logger.Named("market")),
	}
	txs := market.NewTransactionStore(backend, opts...)
	deps.Listings = market.NewListingStore(backend, opts...)
	deps.Transactions = txs
	deps.Engine = market.NewEngine(backend, txs, opts...)
	deps.Accounts = auth.NewService(backend, cfg.Auth, logger.Named("auth"))
	deps.Content = content.NewService(backend, logger.Named("content"))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if producer != nil {
		producer.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	if cfg.Store.Backend != config.BackendPostgres {
		return store.NewMemory(), nil
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return store.NewPostgres(db), nil
}
