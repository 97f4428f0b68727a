// Package dispatch fans a resolved target list out to the channel senders.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
	"github.com/nate-a11y/lrpbolt-sub001/internal/ratelimiter"
)

// TokenPruner removes stale push tokens from the token directory.
type TokenPruner interface {
	DeleteTokens(ctx context.Context, tokens []string) (int, error)
}

// TokenSuppressor hides stale tokens from resolution until the directory
// catches up. May be nil.
type TokenSuppressor interface {
	Suppress(ctx context.Context, tokens []string) error
}

// Senders groups the three channel transports.
type Senders struct {
	Push  provider.PushSender
	Email provider.EmailSender
	SMS   provider.SMSSender
}

// Hooks carries metric callbacks injected by main. Nil fields are no-ops.
type Hooks struct {
	OnDelivery func(channel domain.Channel, result domain.OutcomeResult, latency time.Duration)
	OnPruned   func(n int)
}

// Dispatcher delivers one ticket context to many targets. A failing target
// never stops later targets from being attempted.
type Dispatcher struct {
	senders    Senders
	pruner     TokenPruner
	suppressor TokenSuppressor
	limiter    *ratelimiter.ChannelLimiters
	render     *provider.Renderer
	logger     *zap.Logger
	hooks      Hooks
}

func New(
	senders Senders,
	pruner TokenPruner,
	suppressor TokenSuppressor,
	limiter *ratelimiter.ChannelLimiters,
	render *provider.Renderer,
	logger *zap.Logger,
	hooks Hooks,
) *Dispatcher {
	if hooks.OnDelivery == nil {
		hooks.OnDelivery = func(domain.Channel, domain.OutcomeResult, time.Duration) {}
	}
	if hooks.OnPruned == nil {
		hooks.OnPruned = func(int) {}
	}
	return &Dispatcher{
		senders:    senders,
		pruner:     pruner,
		suppressor: suppressor,
		limiter:    limiter,
		render:     render,
		logger:     logger,
		hooks:      hooks,
	}
}

// LogChannelAvailability reports once which channels are inert.
func (d *Dispatcher) LogChannelAvailability() {
	d.logger.Info("delivery channels",
		zap.Bool("push", d.senders.Push.Enabled()),
		zap.Bool("email", d.senders.Email.Enabled()),
		zap.Bool("sms", d.senders.SMS.Enabled()),
		zap.Strings("sms_missing", d.senders.SMS.Missing()),
	)
}

// Dispatch attempts every target and returns the per-target outcomes. The
// error joins every per-target failure and is nil when none failed. Targets
// on an unconfigured channel are skipped, not failed.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []domain.Target, tc domain.TicketContext) (*domain.DispatchReport, error) {
	var (
		tokens []string
		emails []domain.EmailTarget
		phones []domain.SMSTarget
	)
	seenTokens := make(map[string]struct{})
	for _, t := range targets {
		switch t := t.(type) {
		case domain.PushTarget:
			if _, ok := seenTokens[t.Token]; ok {
				continue
			}
			seenTokens[t.Token] = struct{}{}
			tokens = append(tokens, t.Token)
		case domain.EmailTarget:
			emails = append(emails, t)
		case domain.SMSTarget:
			phones = append(phones, t)
		}
	}

	report := &domain.DispatchReport{}
	var errs []error

	if len(tokens) > 0 {
		errs = append(errs, d.sendPush(ctx, tokens, tc, report))
	}
	for _, t := range emails {
		errs = append(errs, d.sendEmail(ctx, t, tc, report))
	}
	for _, t := range phones {
		errs = append(errs, d.sendSMS(ctx, t, tc, report))
	}

	return report, errors.Join(errs...)
}

func (d *Dispatcher) sendPush(ctx context.Context, tokens []string, tc domain.TicketContext, report *domain.DispatchReport) error {
	if !d.senders.Push.Enabled() {
		d.logger.Debug("push channel unavailable, skipping", zap.Int("tokens", len(tokens)))
		for _, tok := range tokens {
			d.record(report, domain.TargetOutcome{Channel: domain.ChannelPush, To: tok, Result: domain.OutcomeSkipped}, 0)
		}
		return nil
	}

	start := time.Now()
	res, err := call(ctx, d.limiter, domain.ChannelPush, func() (*provider.MulticastResult, error) {
		return d.senders.Push.SendMulticast(ctx, d.render.Push(tc, tokens))
	})
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("push multicast failed", zap.Int("tokens", len(tokens)), zap.Error(err))
		for _, tok := range tokens {
			d.record(report, domain.TargetOutcome{
				Channel: domain.ChannelPush, To: tok, Result: domain.OutcomeFailed, Error: err.Error(),
			}, elapsed)
		}
		return fmt.Errorf("push multicast: %w", err)
	}

	for _, r := range res.Results {
		o := domain.TargetOutcome{Channel: domain.ChannelPush, To: r.Token, Result: domain.OutcomeSent, MessageID: r.MessageID}
		if r.Error != "" {
			o.Result, o.Error = domain.OutcomeFailed, r.Error
		}
		d.record(report, o, elapsed)
	}

	if stale := res.StaleTokens(); len(stale) > 0 {
		d.prune(ctx, stale)
	}
	return nil
}

// prune removes rejected tokens. Failures only cost a wasted send next time.
func (d *Dispatcher) prune(ctx context.Context, stale []string) {
	if d.suppressor != nil {
		if err := d.suppressor.Suppress(ctx, stale); err != nil {
			d.logger.Warn("failed to suppress stale tokens", zap.Error(err))
		}
	}
	if d.pruner == nil {
		return
	}
	n, err := d.pruner.DeleteTokens(ctx, stale)
	if err != nil {
		d.logger.Warn("failed to prune stale tokens", zap.Int("tokens", len(stale)), zap.Error(err))
		return
	}
	d.hooks.OnPruned(n)
	d.logger.Info("pruned stale push tokens", zap.Int("count", n))
}

func (d *Dispatcher) sendEmail(ctx context.Context, t domain.EmailTarget, tc domain.TicketContext, report *domain.DispatchReport) error {
	o := domain.TargetOutcome{Channel: domain.ChannelEmail, To: t.Email}
	if !d.senders.Email.Enabled() {
		d.logger.Debug("email channel unavailable, skipping", zap.String("to", t.Email))
		o.Result = domain.OutcomeSkipped
		d.record(report, o, 0)
		return nil
	}

	start := time.Now()
	err := d.deliverEmail(ctx, t.Email, tc)
	return d.finish(report, o, "", err, time.Since(start))
}

func (d *Dispatcher) sendSMS(ctx context.Context, t domain.SMSTarget, tc domain.TicketContext, report *domain.DispatchReport) error {
	o := domain.TargetOutcome{Channel: domain.ChannelSMS, To: t.Phone}
	if !d.senders.SMS.Enabled() {
		d.logger.Debug("sms channel unavailable, skipping", zap.String("to", t.Phone))
		o.Result = domain.OutcomeSkipped
		d.record(report, o, 0)
		return nil
	}

	start := time.Now()
	sid, err := d.deliverSMS(ctx, t.Phone, tc)
	return d.finish(report, o, sid, err, time.Since(start))
}

func (d *Dispatcher) deliverEmail(ctx context.Context, to string, tc domain.TicketContext) error {
	msg, err := d.render.Email(tc, to)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	_, err = call(ctx, d.limiter, domain.ChannelEmail, func() (struct{}, error) {
		return struct{}{}, d.senders.Email.Send(ctx, msg)
	})
	return err
}

func (d *Dispatcher) deliverSMS(ctx context.Context, to string, tc domain.TicketContext) (string, error) {
	return call(ctx, d.limiter, domain.ChannelSMS, func() (string, error) {
		receipt, err := d.senders.SMS.Send(ctx, d.render.SMS(tc, to))
		if err != nil {
			return "", err
		}
		return receipt.SID, nil
	})
}

func (d *Dispatcher) finish(report *domain.DispatchReport, o domain.TargetOutcome, msgID string, err error, elapsed time.Duration) error {
	if err != nil {
		d.logger.Warn("send failed",
			zap.String("channel", string(o.Channel)),
			zap.String("to", o.To),
			zap.Error(err),
		)
		o.Result, o.Error = domain.OutcomeFailed, err.Error()
		d.record(report, o, elapsed)
		return fmt.Errorf("%s %s: %w", o.Channel, o.To, err)
	}
	o.Result, o.MessageID = domain.OutcomeSent, msgID
	d.record(report, o, elapsed)
	return nil
}

// call blocks on the channel's rate limiter, then runs send. A panic inside
// send is returned as an error so sibling targets are still attempted.
func call[T any](ctx context.Context, limiter *ratelimiter.ChannelLimiters, ch domain.Channel, send func() (T, error)) (res T, err error) {
	if err := limiter.Wait(ctx, ch); err != nil {
		return res, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panicked: %v", ch, r)
		}
	}()
	return send()
}

func (d *Dispatcher) record(report *domain.DispatchReport, o domain.TargetOutcome, elapsed time.Duration) {
	report.Add(o)
	d.hooks.OnDelivery(o.Channel, o.Result, elapsed)
}

// Redeliver sends one email or SMS again for a pending delivery attempt and
// returns the transport message id, if any.
func (d *Dispatcher) Redeliver(ctx context.Context, a *domain.DeliveryAttempt, tc domain.TicketContext) (string, error) {
	target, err := a.Target()
	if err != nil {
		return "", err
	}

	start := time.Now()
	var sid string
	switch t := target.(type) {
	case domain.EmailTarget:
		if !d.senders.Email.Enabled() {
			return "", fmt.Errorf("email: %w", domain.ErrChannelUnavailable)
		}
		err = d.deliverEmail(ctx, t.Email, tc)
	case domain.SMSTarget:
		if !d.senders.SMS.Enabled() {
			return "", &domain.MissingConfigError{Channel: domain.ChannelSMS, Vars: d.senders.SMS.Missing()}
		}
		sid, err = d.deliverSMS(ctx, t.Phone, tc)
	}

	result := domain.OutcomeSent
	if err != nil {
		result = domain.OutcomeFailed
	}
	d.hooks.OnDelivery(target.Channel(), result, time.Since(start))
	return sid, err
}
