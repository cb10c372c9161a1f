package watchlist

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("watchlist: missing API key")
	ErrListNotFound  = errors.New("watchlist: list not found")
)

// Store is the keyed-list contract used for address membership. Items are
// normalized per list namespace before any call: case-sensitive lists carry
// the "_sol" suffix and keep items verbatim, everything else is lowercased.
type Store interface {
	Add(ctx context.Context, listKey, item string) error
	Remove(ctx context.Context, listKey, item string) (bool, error)
	Contains(ctx context.Context, listKey, item string) (bool, error)
	// ContainsBatch answers membership for every item in one round trip.
	// The result slice is parallel to items.
	ContainsBatch(ctx context.Context, listKey string, items []string) ([]bool, error)
	CreateList(ctx context.Context, listKey string, initialItems []string) error
	Close() error
}

const caseSensitiveSuffix = "_sol"

// NormalizeItem applies the list namespace's casing rule. Applying it twice
// yields the same result as applying it once.
func NormalizeItem(item, listKey string) string {
	if strings.HasSuffix(listKey, caseSensitiveSuffix) {
		return item
	}
	return strings.ToLower(item)
}
