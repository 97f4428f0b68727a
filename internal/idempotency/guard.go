// Package idempotency suppresses duplicate deliveries of the same trigger.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

// Namespace prefixes every marker id.
const Namespace = "__events"

// Guard claims a dedupe key for one pipeline. The first Claim of a key wins;
// later claims of the same key report false until the marker is removed
// externally.
type Guard struct {
	store    repository.MarkerStore
	pipeline string
	logger   *zap.Logger
	now      func() time.Time

	onDuplicate func(pipeline string)
}

// New builds a Guard. onDuplicate is optional (nil = no-op).
func New(store repository.MarkerStore, pipeline string, logger *zap.Logger, onDuplicate func(string)) *Guard {
	if onDuplicate == nil {
		onDuplicate = func(string) {}
	}
	return &Guard{
		store:       store,
		pipeline:    pipeline,
		logger:      logger.With(zap.String("pipeline", pipeline)),
		now:         func() time.Time { return time.Now().UTC() },
		onDuplicate: onDuplicate,
	}
}

// Pipeline returns the name the guard namespaces its markers under.
func (g *Guard) Pipeline() string { return g.pipeline }

// Claim reports whether the caller may process the event identified by path
// (preferred) or eventID. With neither available the call always succeeds,
// so keyless triggers are processed at least once rather than at most once.
//
// A false result with a nil error means a duplicate delivery. Store failures
// other than an existing marker are returned.
func (g *Guard) Claim(ctx context.Context, path, eventID string) (bool, error) {
	key := strings.TrimSpace(path)
	if key == "" {
		key = strings.TrimSpace(eventID)
	}
	if key == "" {
		g.logger.Debug("no dedupe key: processing without idempotency")
		return true, nil
	}

	id := MarkerID(g.pipeline, key)
	err := g.store.CreateMarker(ctx, id, g.now())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAlreadyClaimed):
		g.logger.Warn("duplicate event skipped", zap.String("marker", id))
		g.onDuplicate(g.pipeline)
		return false, nil
	default:
		return false, fmt.Errorf("claim %s: %w", id, err)
	}
}

// NormalizeKey makes a storage path safe to use as a single record id.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "/", "__")
}

// MarkerID is the full marker id for key under pipeline.
func MarkerID(pipeline, key string) string {
	return Namespace + "/" + pipeline + "/" + NormalizeKey(key)
}
