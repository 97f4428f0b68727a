// Package resolver expands recipient descriptors into deliverable addresses.
package resolver

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

// TokenFilter removes tokens that are known to be stale. Implementations must
// fail open: on error they return the input unchanged.
type TokenFilter interface {
	FilterSuppressed(ctx context.Context, tokens []string) []string
}

// Resolver turns RecipientDescriptors into emails and emails into push tokens.
// Lookup failures only drop the affected recipient.
type Resolver struct {
	users       repository.UserDirectory
	tokens      repository.TokenDirectory
	suppressed  TokenFilter
	concurrency int
	logger      *zap.Logger
}

// New builds a Resolver. suppressed may be nil. concurrency bounds the
// number of in-flight user lookups; values below 1 mean 8.
func New(
	users repository.UserDirectory,
	tokens repository.TokenDirectory,
	suppressed TokenFilter,
	concurrency int,
	logger *zap.Logger,
) *Resolver {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Resolver{
		users:       users,
		tokens:      tokens,
		suppressed:  suppressed,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ResolveEmails accepts descriptors containing "@" as literal addresses and
// looks the rest up in the user directory. The result is lower-cased,
// de-duplicated and sorted.
func (r *Resolver) ResolveEmails(ctx context.Context, candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	var keys []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.Contains(c, "@") {
			seen[strings.ToLower(c)] = struct{}{}
			continue
		}
		keys = append(keys, c)
	}

	found := make([]string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			found[i] = r.lookup(gctx, key)
			return nil
		})
	}
	_ = g.Wait() // lookups never fail the group

	for _, email := range found {
		if email != "" {
			seen[email] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (r *Resolver) lookup(ctx context.Context, key string) string {
	u, err := r.users.GetUser(ctx, key)
	if err != nil {
		r.logger.Warn("user lookup failed", zap.String("user_key", key), zap.Error(err))
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if !strings.Contains(email, "@") {
		r.logger.Debug("user has no usable email", zap.String("user_key", key))
		return ""
	}
	return email
}

// ResolveFCMTokens loads the push tokens registered for emails. The token
// directory is queried in chunks of repository.MaxInQuery; a failed chunk is
// logged and skipped. Records without a token field contribute their id.
func (r *Resolver) ResolveFCMTokens(ctx context.Context, emails []string) []string {
	if len(emails) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	for _, chunk := range Chunk(emails, repository.MaxInQuery) {
		records, err := r.tokens.FindByEmails(ctx, chunk)
		if err != nil {
			r.logger.Warn("token lookup failed", zap.Strings("emails", chunk), zap.Error(err))
			continue
		}
		for _, rec := range records {
			if tok := strings.TrimSpace(rec.TokenValue()); tok != "" {
				seen[tok] = struct{}{}
			}
		}
	}

	tokens := sortedKeys(seen)
	if r.suppressed != nil && len(tokens) > 0 {
		tokens = r.suppressed.FilterSuppressed(ctx, tokens)
	}
	return tokens
}

// Chunk splits s into consecutive slices of at most size elements.
func Chunk(s []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for len(s) > size {
		out = append(out, s[:size:size])
		s = s[size:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
