package cart

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	defaultJanitorInterval  = 30 * time.Minute
	defaultJanitorTTL       = 72 * time.Hour
	defaultJanitorBatchSize = 500
)

var (
	janitorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_cart_janitor_runs_total",
		Help: "Total number of guest cart janitor runs grouped by result.",
	}, []string{"result"})
	janitorAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_cart_janitor_abandoned_total",
		Help: "Total number of guest carts marked abandoned.",
	})
	janitorLastAbandoned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_cart_janitor_last_abandoned",
		Help: "Number of carts abandoned during the last janitor run.",
	})
)

// JanitorOptions задаёт параметры воркера уборки гостевых корзин.
type JanitorOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
}

// JanitorOption настраивает Janitor.
type JanitorOption func(*JanitorOptions)

// WithJanitorLogger задаёт logger для воркера.
func WithJanitorLogger(logger *log.Entry) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.Logger = logger
	}
}

// WithJanitorInterval задаёт интервал между циклами уборки.
func WithJanitorInterval(interval time.Duration) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.Interval = interval
	}
}

// WithJanitorTTL задаёт срок неактивности гостевой корзины.
func WithJanitorTTL(ttl time.Duration) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.TTL = ttl
	}
}

// WithJanitorBatchSize задаёт размер порции за один проход.
func WithJanitorBatchSize(batchSize int) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.BatchSize = batchSize
	}
}

// Janitor периодически помечает протухшие гостевые корзины как abandoned.
// Пользовательские корзины не трогает: они сливаются при логине.
type Janitor struct {
	store     domain.Store
	logger    *log.Entry
	interval  time.Duration
	ttl       time.Duration
	batchSize int
}

// NewJanitor создаёт воркер уборки гостевых корзин.
func NewJanitor(store domain.Store, options ...JanitorOption) *Janitor {
	opts := JanitorOptions{
		Interval:  defaultJanitorInterval,
		TTL:       defaultJanitorTTL,
		BatchSize: defaultJanitorBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-janitor")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultJanitorInterval
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultJanitorTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultJanitorBatchSize
	}

	return &Janitor{
		store:     store,
		logger:    logger,
		interval:  opts.Interval,
		ttl:       opts.TTL,
		batchSize: opts.BatchSize,
	}
}

// Run запускает периодическую уборку до отмены ctx.
func (j *Janitor) Run(ctx context.Context) {
	if j.store == nil {
		j.logger.Warn("cart janitor is disabled: store is nil")
		return
	}

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	abandoned, err := j.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		janitorRunsTotal.WithLabelValues("error").Inc()
		j.logger.WithError(err).Warn("cart janitor run failed")
		return
	}

	janitorRunsTotal.WithLabelValues("ok").Inc()
	janitorLastAbandoned.Set(float64(abandoned))
	if abandoned > 0 {
		j.logger.WithField("abandoned", abandoned).Info("stale guest carts abandoned")
	}
}

// SweepOnce помечает все протухшие гостевые корзины порциями batchSize.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.ttl)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var abandoned int
		err := j.store.Atomic(ctx, func(tx domain.Tx) error {
			var err error
			abandoned, err = tx.Carts().AbandonGuestCartsBefore(cutoff, j.batchSize)
			return err
		})
		if err != nil {
			return total, err
		}

		total += abandoned
		if abandoned > 0 {
			janitorAbandonedTotal.Add(float64(abandoned))
		}
		if abandoned < j.batchSize {
			break
		}
	}

	return total, nil
}
