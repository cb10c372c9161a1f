package tokens

import (
	"context"
	"time"

	"github.com/fystack/walletstream/internal/rpc/jupiter"
	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/ratelimiter"
	"github.com/fystack/walletstream/pkg/repository"
)

const (
	solanaMainnetNetwork = "solana-mainnet"
	verifiedListKey      = "verified"
)

// TokenLister is the slice of the Jupiter client the resolver uses.
type TokenLister interface {
	Verified(ctx context.Context) ([]jupiter.Token, error)
	Search(ctx context.Context, query string) ([]jupiter.Token, error)
}

// SupplyReader reads authoritative mint decimals on-chain.
type SupplyReader interface {
	GetTokenSupplyDecimals(ctx context.Context, mint string) (uint8, error)
}

type SolanaResolverConfig struct {
	ListTTL           time.Duration
	SearchTTL         time.Duration
	SearchMinInterval time.Duration
	Clock             Clock
}

// SolanaResolver resolves SPL mint identity. Order: persisted cache, the
// verified token list (mainnet only, refreshed on a long TTL), a per-mint
// search with a shorter TTL and enforced request spacing, then an on-chain
// decimals read that always runs because list data can carry stale decimals.
type SolanaResolver struct {
	store       repository.TokenStore
	lister      TokenLister
	supply      SupplyReader
	clock       Clock
	spacing     *ratelimiter.SpacingLimiter
	listCache   *TTLCache[string, map[string]jupiter.Token]
	searchCache *TTLCache[string, *jupiter.Token]
}

func NewSolanaResolver(
	store repository.TokenStore,
	lister TokenLister,
	supply SupplyReader,
	cfg SolanaResolverConfig,
) *SolanaResolver {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SolanaResolver{
		store:       store,
		lister:      lister,
		supply:      supply,
		clock:       clock,
		spacing:     ratelimiter.NewSpacingLimiter(cfg.SearchMinInterval),
		listCache:   NewTTLCache[string, map[string]jupiter.Token](cfg.ListTTL, clock),
		searchCache: NewTTLCache[string, *jupiter.Token](cfg.SearchTTL, clock),
	}
}

func (r *SolanaResolver) Resolve(ctx context.Context, mint, network string) model.Token {
	if cached, err := r.store.FindByAddress(ctx, mint); err == nil {
		return *cached
	}

	var (
		name, symbol string
		decimals     uint8
		found        bool
	)

	if network == solanaMainnetNetwork {
		if entry, ok := r.verifiedList(ctx)[mint]; ok {
			name, symbol, decimals = entry.Name, entry.Symbol, entry.Decimals
			found = true
		}
	}

	if !found {
		if entry := r.search(ctx, mint); entry != nil {
			name, symbol, decimals = entry.Name, entry.Symbol, entry.Decimals
			found = true
		}
	}

	// List and search data can disagree with the chain on decimals, and
	// decimals must be exact for amount formatting.
	decimalsResolved := false
	if r.supply != nil {
		if d, err := r.supply.GetTokenSupplyDecimals(ctx, mint); err == nil {
			decimals = d
			decimalsResolved = true
		} else {
			logger.Warn("Token supply lookup failed", "mint", mint, "err", err)
		}
	}

	if !found && !decimalsResolved {
		return placeholder(mint, network, 0)
	}

	if name == "" {
		name = placeholderName
	}
	if symbol == "" {
		symbol = placeholderSymbol
	}

	return persistResolved(ctx, r.store, model.Token{
		Address:  mint,
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
		Chain:    network,
	})
}

func (r *SolanaResolver) verifiedList(ctx context.Context) map[string]jupiter.Token {
	if r.lister == nil {
		return nil
	}
	if list, ok := r.listCache.Get(verifiedListKey); ok {
		return list
	}

	tokens, err := r.lister.Verified(ctx)
	if err != nil {
		logger.Warn("Verified token list refresh failed", "err", err)
		return nil
	}
	list := make(map[string]jupiter.Token, len(tokens))
	for _, token := range tokens {
		list[token.Address] = token
	}
	r.listCache.Put(verifiedListKey, list)
	return list
}

// search queries the token API for one mint. Negative results are cached
// too, and the query is skipped entirely when the minimum inter-request
// spacing has not elapsed.
func (r *SolanaResolver) search(ctx context.Context, mint string) *jupiter.Token {
	if r.lister == nil {
		return nil
	}
	if entry, ok := r.searchCache.Get(mint); ok {
		return entry
	}
	if !r.spacing.AllowAt(r.clock()) {
		return nil
	}

	results, err := r.lister.Search(ctx, mint)
	if err != nil {
		logger.Warn("Token search failed", "mint", mint, "err", err)
		return nil
	}

	var match *jupiter.Token
	for i := range results {
		if results[i].Address == mint {
			match = &results[i]
			break
		}
	}
	r.searchCache.Put(mint, match)
	return match
}
