// Package app builds the notification pipeline from configuration. Both the
// server and notifyctl wire through Build so they run identical pipelines.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/cache"
	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/dispatch"
	"github.com/nate-a11y/lrpbolt-sub001/internal/idempotency"
	"github.com/nate-a11y/lrpbolt-sub001/internal/metrics"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
	"github.com/nate-a11y/lrpbolt-sub001/internal/ratelimiter"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/resolver"
	"github.com/nate-a11y/lrpbolt-sub001/internal/retry"
	"github.com/nate-a11y/lrpbolt-sub001/internal/service"
	"github.com/nate-a11y/lrpbolt-sub001/internal/status"
	"github.com/nate-a11y/lrpbolt-sub001/internal/worker"
)

// App holds every long-lived pipeline component.
type App struct {
	Metrics    *metrics.Metrics
	Queue      *queue.PriorityQueue
	Dispatcher *dispatch.Dispatcher
	Notify     *service.NotifyQueueProcessor
	SMS        *service.OutboundSMSProcessor
	Tickets    *service.TicketNotifier
	Service    *service.QueueService
	Tokens     *cache.TokenCache

	pool     *worker.Pool
	listener *worker.Listener
	sweeper  *worker.SweepWorker
	retrier  *worker.RetryWorker
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// Build wires repositories, transports and pipelines on top of db.
func Build(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, reg prometheus.Registerer, logger *zap.Logger) *App {
	m := metrics.New(reg)
	onDelivery, onPruned := m.DeliveryHooks()
	onProcessed, onDuplicate := m.PipelineHooks()

	items := repository.NewPgWorkItemRepository(db)
	outbound := repository.NewPgOutboundRepository(db)
	attempts := repository.NewPgAttemptRepository(db)
	markers := repository.NewPgMarkerStore(db)
	users := repository.NewPgUserDirectory(db)
	tokens := repository.NewPgTokenDirectory(db)

	tokenCache := connectCache(ctx, cfg, logger)

	sms := provider.NewTwilioProvider(cfg.Twilio, cfg.ProviderTimeout)
	d := dispatch.New(
		dispatch.Senders{
			Push:  provider.NewFCMProvider(ctx, cfg.FCM, cfg.ProviderTimeout, logger),
			Email: provider.NewSMTPProvider(cfg.SMTP),
			SMS:   sms,
		},
		tokens, tokenCache,
		ratelimiter.New(cfg.RateLimit),
		provider.NewRenderer(cfg.Brand),
		logger.Named("dispatch"),
		dispatch.Hooks{OnDelivery: onDelivery, OnPruned: onPruned},
	)

	reporter := status.New(items, outbound, attempts, cfg.MaxDeliveryAttempts, cfg.RetryBackoff, logger.Named("status"))
	res := resolver.New(users, tokens, tokenCache, cfg.LookupConcurrency, logger.Named("resolver"))

	a := &App{
		Metrics:    m,
		Queue:      queue.New(),
		Dispatcher: d,
		Notify: service.NewNotifyQueueProcessor(
			idempotency.New(markers, service.PipelineNotifyQueue, logger, onDuplicate),
			items, d, reporter, logger.Named("notify"), onProcessed),
		SMS: service.NewOutboundSMSProcessor(
			idempotency.New(markers, service.PipelineOutbound, logger, onDuplicate),
			outbound, sms, reporter, logger.Named("sms"), onProcessed),
		Tickets: service.NewTicketNotifier(
			idempotency.New(markers, service.PipelineTickets, logger, onDuplicate),
			res, items, logger.Named("tickets")),
		Service: service.NewQueueService(items, outbound, logger),
		Tokens:  tokenCache,
		logger:  logger,
	}

	pipelines := map[queue.Kind]string{
		queue.KindNotify: service.PipelineNotifyQueue,
		queue.KindSMS:    service.PipelineOutbound,
	}
	onFailed := func(k queue.Kind) { onProcessed(pipelines[k], "failed") }
	a.pool = worker.NewPool(cfg, a.Queue,
		worker.Processors{queue.KindNotify: a.Notify, queue.KindSMS: a.SMS},
		logger.Named("worker"),
		worker.MetricHooks{OnDepth: m.SetQueueDepths, OnFailed: onFailed},
	)
	a.listener = worker.NewListener(db, a.Queue, worker.DefaultChannels, retry.Config{
		MaxAttempts:    cfg.ListenReconnectMax,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFactor:   0.2,
	}, logger.Named("listener"))
	a.sweeper = worker.NewSweepWorker(items, outbound, a.Queue, cfg.SweepInterval, cfg.SweepGrace, logger.Named("sweeper"))
	a.retrier = worker.NewRetryWorker(attempts, items, d, reporter, cfg.RetryInterval, logger.Named("retry"))

	return a
}

// connectCache returns nil when REDIS_URL is unset or unreachable; the
// pipeline then runs without stale token suppression.
func connectCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) *cache.TokenCache {
	if cfg.RedisURL == "" {
		return nil
	}
	c, err := cache.New(cfg.RedisURL, cfg.SuppressTTL, logger.Named("cache"))
	if err != nil {
		logger.Warn("invalid REDIS_URL, token suppression disabled", zap.Error(err))
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, token suppression disabled", zap.Error(err))
		_ = c.Close()
		return nil
	}
	return c
}

// Start launches the worker pool and the background loops. Cancelling ctx
// stops all of them; Wait blocks until they have returned.
func (a *App) Start(ctx context.Context) {
	a.Dispatcher.LogChannelAvailability()
	a.pool.Start(ctx)

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		if err := a.listener.Run(ctx); err != nil {
			a.logger.Error("listener gave up, relying on the sweeper", zap.Error(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		a.sweeper.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.retrier.Run(ctx)
	}()
}

// Wait blocks until in-flight work has drained after ctx is cancelled.
func (a *App) Wait() {
	a.pool.Wait()
	a.wg.Wait()
}

// Close releases the optional token cache.
func (a *App) Close() error {
	return a.Tokens.Close()
}
