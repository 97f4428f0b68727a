package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
	"github.com/nate-a11y/lrpbolt-sub001/internal/retry"
)

// Notification channels raised by the insert triggers in migrations/.
const (
	ChannelNotifyQueue = "notify_queue_created"
	ChannelOutbound    = "outbound_message_created"
)

// DefaultChannels maps each trigger channel to the queue kind it feeds.
var DefaultChannels = map[string]queue.Kind{
	ChannelNotifyQueue: queue.KindNotify,
	ChannelOutbound:    queue.KindSMS,
}

// Listener turns Postgres change notifications into queue items. It holds
// one dedicated connection and re-establishes it with backoff when lost.
type Listener struct {
	pool     *pgxpool.Pool
	q        *queue.PriorityQueue
	channels map[string]queue.Kind
	backoff  retry.Config
	logger   *zap.Logger
}

func NewListener(
	pool *pgxpool.Pool,
	q *queue.PriorityQueue,
	channels map[string]queue.Kind,
	backoff retry.Config,
	logger *zap.Logger,
) *Listener {
	return &Listener{pool: pool, q: q, channels: channels, backoff: backoff, logger: logger}
}

// Run blocks until ctx is cancelled. It returns an error only when the
// connection could not be re-established within the retry budget.
func (l *Listener) Run(ctx context.Context) error {
	for {
		var conn *pgx.Conn
		err := retry.Do(ctx, l.backoff, func(ctx context.Context) error {
			c, err := l.connect(ctx)
			if err != nil {
				l.logger.Warn("listen connect failed", zap.Error(err))
				return err
			}
			conn = c
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listen: %w", err)
		}

		l.logger.Info("listening for queue notifications", zap.Int("channels", len(l.channels)))
		err = l.receive(ctx, conn)
		_ = conn.Close(context.Background())

		if ctx.Err() != nil {
			l.logger.Info("listener stopping")
			return nil
		}
		l.logger.Warn("notification connection lost, reconnecting", zap.Error(err))
	}
}

// connect takes a connection out of the pool for good and subscribes it.
func (l *Listener) connect(ctx context.Context) (*pgx.Conn, error) {
	pc, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	conn := pc.Hijack()

	for ch := range l.channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			_ = conn.Close(context.Background())
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	return conn, nil
}

func (l *Listener) receive(ctx context.Context, conn *pgx.Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.HandleNotification(n.Channel, n.Payload)
	}
}

// HandleNotification enqueues the row id carried by payload. A full queue
// is logged; the sweeper picks the row up later.
func (l *Listener) HandleNotification(channel, payload string) {
	kind, ok := l.channels[channel]
	if !ok {
		l.logger.Debug("ignoring notification on unknown channel", zap.String("channel", channel))
		return
	}
	id := strings.TrimSpace(payload)
	if id == "" {
		return
	}

	if err := l.q.Enqueue(queue.Item{Kind: kind, ID: id, Priority: queue.DefaultPriority(kind)}); err != nil {
		l.logger.Warn("could not enqueue notified row, sweeper will recover it",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
}
