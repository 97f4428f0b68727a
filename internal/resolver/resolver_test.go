package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/resolver"
)

func newResolver(users *repository.MockUserDirectory, tokens *repository.MockTokenDirectory, f resolver.TokenFilter) *resolver.Resolver {
	return resolver.New(users, tokens, f, 4, zap.NewNop())
}

func TestResolveEmails_LiteralPassthrough(t *testing.T) {
	users := repository.NewMockUserDirectory()
	r := newResolver(users, repository.NewMockTokenDirectory(), nil)

	got := r.ResolveEmails(context.Background(), []string{"Dispatch@LRP.com", "dispatch@lrp.com"})

	assert.Equal(t, []string{"dispatch@lrp.com"}, got)
	assert.Empty(t, users.Calls(), "literal emails must not hit the directory")
}

func TestResolveEmails_KeyLookup(t *testing.T) {
	users := repository.NewMockUserDirectory()
	users.Add("u-1", "X@Y.com")
	users.Add("u-2", "not-an-email")
	users.Errs["u-3"] = errors.New("deadline exceeded")
	r := newResolver(users, repository.NewMockTokenDirectory(), nil)

	got := r.ResolveEmails(context.Background(), []string{"u-1", "u-2", "u-3", "missing", " ", "a@b.com"})

	assert.Equal(t, []string{"a@b.com", "x@y.com"}, got)
	assert.ElementsMatch(t, []string{"u-1", "u-2", "u-3", "missing"}, users.Calls())
}

func TestResolveEmails_Empty(t *testing.T) {
	users := repository.NewMockUserDirectory()
	r := newResolver(users, repository.NewMockTokenDirectory(), nil)

	assert.Empty(t, r.ResolveEmails(context.Background(), nil))
	assert.Empty(t, users.Calls())
}

func TestResolveFCMTokens_Chunking(t *testing.T) {
	emails := make([]string, 25)
	var records []domain.TokenRecord
	for i := range emails {
		emails[i] = fmt.Sprintf("driver%02d@lrp.com", i)
		records = append(records, domain.TokenRecord{ID: fmt.Sprintf("rec-%d", i), Email: emails[i], Token: fmt.Sprintf("tok-%d", i)})
	}
	// Two emails share a token.
	records = append(records, domain.TokenRecord{ID: "shared", Email: emails[24], Token: "tok-0"})
	tokens := repository.NewMockTokenDirectory(records...)
	r := newResolver(repository.NewMockUserDirectory(), tokens, nil)

	got := r.ResolveFCMTokens(context.Background(), emails)

	queries := tokens.Queries()
	require.Len(t, queries, 3)
	assert.Len(t, queries[0], 10)
	assert.Len(t, queries[1], 10)
	assert.Len(t, queries[2], 5)
	assert.Len(t, got, 25)
}

func TestResolveFCMTokens_LegacyIDFallbackAndChunkFailure(t *testing.T) {
	tokens := repository.NewMockTokenDirectory(
		domain.TokenRecord{ID: "legacy-token", Email: "a@b.com"},
		domain.TokenRecord{ID: "r2", Email: "a@b.com", Token: "new-token"},
	)
	r := newResolver(repository.NewMockUserDirectory(), tokens, nil)

	got := r.ResolveFCMTokens(context.Background(), []string{"a@b.com"})
	assert.Equal(t, []string{"legacy-token", "new-token"}, got)

	tokens.FindErr = errors.New("unavailable")
	assert.Empty(t, r.ResolveFCMTokens(context.Background(), []string{"a@b.com"}))
}

func TestResolveFCMTokens_EmptyIssuesNoQueries(t *testing.T) {
	tokens := repository.NewMockTokenDirectory()
	r := newResolver(repository.NewMockUserDirectory(), tokens, nil)

	assert.Empty(t, r.ResolveFCMTokens(context.Background(), nil))
	assert.Empty(t, tokens.Queries())
}

type dropFilter map[string]bool

func (d dropFilter) FilterSuppressed(_ context.Context, tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !d[t] {
			out = append(out, t)
		}
	}
	return out
}

func TestResolveFCMTokens_SuppressedFiltered(t *testing.T) {
	tokens := repository.NewMockTokenDirectory(
		domain.TokenRecord{ID: "1", Email: "a@b.com", Token: "good"},
		domain.TokenRecord{ID: "2", Email: "a@b.com", Token: "stale"},
	)
	r := newResolver(repository.NewMockUserDirectory(), tokens, dropFilter{"stale": true})

	assert.Equal(t, []string{"good"}, r.ResolveFCMTokens(context.Background(), []string{"a@b.com"}))
}

func TestChunk(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, resolver.Chunk(in, 2))
	assert.Nil(t, resolver.Chunk(nil, 10))
}
