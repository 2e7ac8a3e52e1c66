package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/service/review"
	transporthttp "github.com/vladislavdragonenkov/marketplace/internal/transport/http"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Run собирает приложение и блокирует до отмены ctx: HTTP API, сервер
// метрик и health-проверок, outbox worker и уборщик гостевых корзин.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.Info(version.String())

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	cartSvc := cart.NewService(deps.Store, nil)
	orchestrator := checkout.NewOrchestrator(deps.Store, deps.Gateway,
		checkout.WithMailer(deps.Mailer),
		checkout.WithIdempotency(deps.Idempotency),
	)
	orderSvc := order.NewService(deps.Store, deps.Gateway, nil)
	reviewSvc := review.NewService(deps.Store, nil)
	catalogSvc := catalog.NewService(deps.Store, nil)

	auth := transporthttp.NewAuthenticator(cfg.JWTSecret)
	handler := transporthttp.NewHandler(cartSvc, orchestrator, orderSvc, reviewSvc, catalogSvc, nil)
	router := handler.Router(auth, metrics.NewHTTPMetrics())
	apiServer := transporthttp.NewServer(cfg.HTTPAddr, router, nil)

	healthHandler := health.NewHandler(version.String())
	if deps.Postgres != nil {
		healthHandler.Register("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Postgres.Ping(checkCtx)
		})
	}
	if deps.Redis != nil {
		healthHandler.Register("redis", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Redis.Ping(checkCtx).Err()
		})
	}
	metricsServer := newMetricsServer(cfg.MetricsAddr, healthHandler)

	var wg sync.WaitGroup

	if deps.Publisher != nil {
		workerOptions := []outbox.Option{outbox.WithPollInterval(cfg.OutboxPollInterval)}
		if deps.DLQPublisher != nil {
			workerOptions = append(workerOptions, outbox.WithDLQPublisher(deps.DLQPublisher))
		}
		worker := outbox.NewWorker(deps.Store, deps.Publisher, workerOptions...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	} else {
		logger.Info("outbox worker is disabled: no kafka publisher configured")
	}

	janitor := cart.NewJanitor(deps.Store,
		cart.WithJanitorTTL(cfg.CartTTL),
		cart.WithJanitorInterval(cfg.CartSweepInterval),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- apiServer.Start() }()
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("metrics and health endpoints listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server failed")
			shutdownServers(apiServer, metricsServer, logger)
			wg.Wait()
			return err
		}
	}

	shutdownServers(apiServer, metricsServer, logger)
	wg.Wait()
	return ctx.Err()
}

func newMetricsServer(addr string, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdownServers(apiServer *transporthttp.Server, metricsServer *http.Server, logger *log.Entry) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api server shutdown with error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics server shutdown with error")
	}
}
