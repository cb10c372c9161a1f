package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/walletstream/internal/rpc/jupiter"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
)

type fakeTokenStore struct {
	tokens    map[string]model.Token
	insertErr error
	raceToken *model.Token
	findCalls int
	inserted  int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]model.Token)}
}

func (s *fakeTokenStore) FindByAddress(ctx context.Context, address string) (*model.Token, error) {
	s.findCalls++
	if token, ok := s.tokens[address]; ok {
		return &token, nil
	}
	// Simulates a concurrent resolver winning the insert race between our
	// initial miss and the post-failure re-read.
	if s.raceToken != nil && s.findCalls > 1 && s.raceToken.Address == address {
		return s.raceToken, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeTokenStore) Insert(ctx context.Context, token *model.Token) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.tokens[token.Address] = *token
	s.inserted++
	return nil
}

type fakeLister struct {
	verified      []jupiter.Token
	verifiedErr   error
	searchResults map[string][]jupiter.Token
	searchErr     error
	verifiedCalls int
	searchCalls   int
}

func (l *fakeLister) Verified(ctx context.Context) ([]jupiter.Token, error) {
	l.verifiedCalls++
	return l.verified, l.verifiedErr
}

func (l *fakeLister) Search(ctx context.Context, query string) ([]jupiter.Token, error) {
	l.searchCalls++
	if l.searchErr != nil {
		return nil, l.searchErr
	}
	return l.searchResults[query], nil
}

type fakeSupply struct {
	decimals map[string]uint8
	err      error
	calls    int
}

func (s *fakeSupply) GetTokenSupplyDecimals(ctx context.Context, mint string) (uint8, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.decimals[mint], nil
}

const (
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	bonkMint  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	otherMint = "Mint222222222222222222222222222222222222222"
)

func resolverConfig(clock Clock) SolanaResolverConfig {
	return SolanaResolverConfig{
		ListTTL:           6 * time.Hour,
		SearchTTL:         time.Hour,
		SearchMinInterval: 1100 * time.Millisecond,
		Clock:             clock,
	}
}

func TestSolanaResolverPersistedCacheHit(t *testing.T) {
	store := newFakeTokenStore()
	store.tokens[usdcMint] = model.Token{Address: usdcMint, Name: "USD Coin", Symbol: "USDC", Decimals: 6}
	lister := &fakeLister{}

	r := NewSolanaResolver(store, lister, &fakeSupply{}, resolverConfig(nil))
	token := r.Resolve(context.Background(), usdcMint, solanaMainnetNetwork)

	assert.Equal(t, "USDC", token.Symbol)
	assert.Zero(t, lister.verifiedCalls)
	assert.Zero(t, lister.searchCalls)
}

func TestSolanaResolverVerifiedListWithAuthoritativeDecimals(t *testing.T) {
	store := newFakeTokenStore()
	lister := &fakeLister{verified: []jupiter.Token{
		{Address: usdcMint, Name: "USD Coin", Symbol: "USDC", Decimals: 9}, // stale decimals
	}}
	supply := &fakeSupply{decimals: map[string]uint8{usdcMint: 6}}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))
	token := r.Resolve(context.Background(), usdcMint, solanaMainnetNetwork)

	assert.Equal(t, "USD Coin", token.Name)
	assert.Equal(t, uint8(6), token.Decimals, "on-chain decimals win over list data")
	assert.Equal(t, 1, store.inserted)
	assert.Zero(t, lister.searchCalls, "list hit skips search")
}

func TestSolanaResolverVerifiedListSkippedOffMainnet(t *testing.T) {
	store := newFakeTokenStore()
	lister := &fakeLister{
		verified:      []jupiter.Token{{Address: usdcMint, Name: "USD Coin", Symbol: "USDC", Decimals: 6}},
		searchResults: map[string][]jupiter.Token{},
	}
	supply := &fakeSupply{decimals: map[string]uint8{usdcMint: 6}}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))
	token := r.Resolve(context.Background(), usdcMint, "solana-devnet")

	assert.Zero(t, lister.verifiedCalls)
	assert.Equal(t, 1, lister.searchCalls)
	assert.Equal(t, placeholderName, token.Name, "search missed, decimals still resolved")
	assert.Equal(t, uint8(6), token.Decimals)
}

func TestSolanaResolverSearchFallback(t *testing.T) {
	store := newFakeTokenStore()
	lister := &fakeLister{
		searchResults: map[string][]jupiter.Token{
			bonkMint: {{Address: bonkMint, Name: "Bonk", Symbol: "BONK", Decimals: 5}},
		},
	}
	supply := &fakeSupply{decimals: map[string]uint8{bonkMint: 5}}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))
	token := r.Resolve(context.Background(), bonkMint, solanaMainnetNetwork)

	assert.Equal(t, "BONK", token.Symbol)
	assert.Equal(t, uint8(5), token.Decimals)
	assert.Equal(t, 1, store.inserted)
}

func TestSolanaResolverSearchSpacingSkips(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := newFakeTokenStore()
	lister := &fakeLister{
		searchResults: map[string][]jupiter.Token{
			bonkMint:  {{Address: bonkMint, Name: "Bonk", Symbol: "BONK", Decimals: 5}},
			otherMint: {{Address: otherMint, Name: "Other", Symbol: "OTH", Decimals: 2}},
		},
	}
	supply := &fakeSupply{err: errors.New("rpc down")}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(clock))

	first := r.Resolve(context.Background(), bonkMint, solanaMainnetNetwork)
	assert.Equal(t, "BONK", first.Symbol)
	assert.Equal(t, 1, lister.searchCalls)

	// Second mint arrives before the minimum spacing elapsed: the search
	// step is skipped, not delayed, and the resolver degrades.
	second := r.Resolve(context.Background(), otherMint, solanaMainnetNetwork)
	assert.Equal(t, 1, lister.searchCalls)
	assert.Equal(t, placeholderSymbol, second.Symbol)

	now = now.Add(2 * time.Second)
	third := r.Resolve(context.Background(), otherMint, solanaMainnetNetwork)
	assert.Equal(t, 2, lister.searchCalls)
	assert.Equal(t, "OTH", third.Symbol)
}

func TestSolanaResolverSearchResultCached(t *testing.T) {
	store := newFakeTokenStore()
	store.insertErr = errors.New("db down")
	lister := &fakeLister{
		searchResults: map[string][]jupiter.Token{
			bonkMint: {{Address: bonkMint, Name: "Bonk", Symbol: "BONK", Decimals: 5}},
		},
	}
	supply := &fakeSupply{decimals: map[string]uint8{bonkMint: 5}}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))

	first := r.Resolve(context.Background(), bonkMint, solanaMainnetNetwork)
	second := r.Resolve(context.Background(), bonkMint, solanaMainnetNetwork)

	assert.Equal(t, "BONK", first.Symbol)
	assert.Equal(t, "BONK", second.Symbol, "unpersisted resolution still answers from memory")
	assert.Equal(t, 1, lister.searchCalls, "search result is cached per mint")
}

func TestSolanaResolverGracefulDegradation(t *testing.T) {
	store := newFakeTokenStore()
	lister := &fakeLister{verifiedErr: errors.New("api down"), searchErr: errors.New("api down")}
	supply := &fakeSupply{err: errors.New("rpc down")}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))
	token := r.Resolve(context.Background(), otherMint, solanaMainnetNetwork)

	assert.Equal(t, placeholderName, token.Name)
	assert.Equal(t, placeholderSymbol, token.Symbol)
	assert.Equal(t, uint8(0), token.Decimals)
	assert.Zero(t, store.inserted, "placeholders are not persisted")
}

func TestSolanaResolverDuplicateRaceReread(t *testing.T) {
	store := newFakeTokenStore()
	store.insertErr = repository.ErrDuplicate
	store.raceToken = &model.Token{Address: bonkMint, Name: "Bonk (winner)", Symbol: "BONK", Decimals: 5}
	lister := &fakeLister{
		searchResults: map[string][]jupiter.Token{
			bonkMint: {{Address: bonkMint, Name: "Bonk", Symbol: "BONK", Decimals: 5}},
		},
	}
	supply := &fakeSupply{decimals: map[string]uint8{bonkMint: 5}}

	r := NewSolanaResolver(store, lister, supply, resolverConfig(nil))
	token := r.Resolve(context.Background(), bonkMint, solanaMainnetNetwork)

	require.Equal(t, "Bonk (winner)", token.Name, "the row that won the race is authoritative")
}
