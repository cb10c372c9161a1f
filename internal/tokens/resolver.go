package tokens

import (
	"context"
	"errors"

	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
)

const (
	placeholderName   = "Unknown Token"
	placeholderSymbol = "UNKNOWN"
)

// Resolver turns a token address or mint into a displayable identity. It
// never fails outward: when every source is unavailable it returns a
// placeholder, because missing token identity must not block recording that
// a transfer happened.
type Resolver interface {
	Resolve(ctx context.Context, address, network string) model.Token
}

func placeholder(address, chain string, decimals uint8) model.Token {
	return model.Token{
		Address:  address,
		Name:     placeholderName,
		Symbol:   placeholderSymbol,
		Decimals: decimals,
		Chain:    chain,
	}
}

// persistResolved writes the token through the store. On any failure it
// re-reads once: a duplicate-key error means a concurrent resolution won the
// race and its row is authoritative. Falls back to the in-memory value so
// the current call still succeeds.
func persistResolved(ctx context.Context, store repository.TokenStore, token model.Token) model.Token {
	err := store.Insert(ctx, &token)
	if err == nil {
		return token
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		logger.Warn("Token persist failed", "address", token.Address, "err", err)
	}
	if existing, readErr := store.FindByAddress(ctx, token.Address); readErr == nil {
		return *existing
	}
	return token
}
