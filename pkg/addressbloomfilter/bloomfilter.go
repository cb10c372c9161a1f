package addressbloomfilter

import (
	"context"

	"github.com/fystack/walletstream/pkg/common/enum"
)

// WatchedAddressBloomFilter answers "might this address be watched?" without
// a network call. Negatives are definite, so it is safe to drop candidates
// that miss; positives still go through the authoritative batched membership
// lookup.
type WatchedAddressBloomFilter interface {
	Initialize(ctx context.Context) error
	Add(address string, family enum.ChainFamily)
	AddBatch(addresses []string, family enum.ChainFamily)
	Contains(address string, family enum.ChainFamily) bool
	Clear(family enum.ChainFamily)
	Stats(family enum.ChainFamily) map[string]any
}
