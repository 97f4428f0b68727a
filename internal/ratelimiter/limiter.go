package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// ChannelLimiters holds one token bucket per delivery channel.
// Burst equals the rate, so a quiet channel cannot save up extra sends.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// New creates a ChannelLimiters with ratePerSec tokens per second per channel.
// A non-positive rate disables limiting.
func New(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec
	if ratePerSec <= 0 {
		r, burst = rate.Inf, 1
	}

	return &ChannelLimiters{
		limiters: map[domain.Channel]*rate.Limiter{
			domain.ChannelPush:  rate.NewLimiter(r, burst),
			domain.ChannelEmail: rate.NewLimiter(r, burst),
			domain.ChannelSMS:   rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
// A nil receiver or an unknown channel never waits.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	if cl == nil {
		return nil
	}
	l, ok := cl.limiters[ch]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
