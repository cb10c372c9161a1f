package addressbloomfilter

import (
	"context"
	"math"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/repository"
)

// Config holds dependencies and configuration for the Bloom filter container.
type Config struct {
	UserStore         repository.UserStore // Source of watched wallet addresses
	ExpectedItems     uint                 // Estimated number of addresses per chain family
	FalsePositiveRate float64              // Desired false positive rate
	BatchSize         int                  // Batch size for paginated DB fetches
}

type familyBloomFilter struct {
	mu           sync.RWMutex
	filter       *bloom.BloomFilter
	addressCount uint
}

type addressBloomFilter struct {
	mu      sync.RWMutex
	filters map[enum.ChainFamily]*familyBloomFilter
	config  Config
}

// NewWatchedAddressBloomFilter creates an in-memory bloom filter container
// using the provided config.
func NewWatchedAddressBloomFilter(cfg Config) WatchedAddressBloomFilter {
	return &addressBloomFilter{
		filters: make(map[enum.ChainFamily]*familyBloomFilter),
		config:  cfg,
	}
}

func (abf *addressBloomFilter) Initialize(ctx context.Context) error {
	families := []enum.ChainFamily{
		enum.ChainFamilyEVM,
		enum.ChainFamilySol,
	}

	for _, family := range families {
		offset := 0
		limit := abf.config.BatchSize
		total := 0

		for {
			addresses, err := abf.config.UserStore.ListWalletAddresses(ctx, family, limit, offset)
			if err != nil {
				return err
			}
			if len(addresses) == 0 {
				break
			}

			abf.AddBatch(addresses, family)

			offset += limit
			total += len(addresses)
		}

		logger.Info("In-memory Bloom filter initialized", "family", family, "total", total)
	}
	return nil
}

func (abf *addressBloomFilter) getOrCreateFilter(family enum.ChainFamily) *familyBloomFilter {
	abf.mu.Lock()
	defer abf.mu.Unlock()

	if bf, ok := abf.filters[family]; ok {
		return bf
	}

	m, k := bloom.EstimateParameters(abf.config.ExpectedItems, abf.config.FalsePositiveRate)
	bf := &familyBloomFilter{
		filter:       bloom.New(m, k),
		addressCount: 0,
	}
	abf.filters[family] = bf
	return bf
}

func (abf *addressBloomFilter) Add(address string, family enum.ChainFamily) {
	bf := abf.getOrCreateFilter(family)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.Add([]byte(address))
	bf.addressCount++
}

func (abf *addressBloomFilter) AddBatch(addresses []string, family enum.ChainFamily) {
	bf := abf.getOrCreateFilter(family)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for _, address := range addresses {
		bf.filter.Add([]byte(address))
		bf.addressCount++
	}
}

func (abf *addressBloomFilter) Contains(address string, family enum.ChainFamily) bool {
	bf := abf.getOrCreateFilter(family)
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.filter.Test([]byte(address))
}

func (abf *addressBloomFilter) Clear(family enum.ChainFamily) {
	bf := abf.getOrCreateFilter(family)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.ClearAll()
	bf.addressCount = 0
}

func (abf *addressBloomFilter) Stats(family enum.ChainFamily) map[string]any {
	bf := abf.getOrCreateFilter(family)
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	fillRatio := bf.approximatedFillRatio()
	return map[string]any{
		"family":                     family,
		"addressCount":               bf.addressCount,
		"bitsCount":                  bf.filter.Cap(),
		"hashFunctions":              bf.filter.K(),
		"approximateFillRatio":       fillRatio,
		"estimatedFalsePositiveRate": bf.estimateFalsePositiveRate(),
	}
}

func (bf *familyBloomFilter) approximatedFillRatio() float64 {
	bitset := bf.filter.BitSet()
	bitsSet := bitset.Count()
	totalBits := bitset.Len()
	if totalBits == 0 {
		return 0
	}
	return float64(bitsSet) / float64(totalBits)
}

func (bf *familyBloomFilter) estimateFalsePositiveRate() float64 {
	n := float64(bf.addressCount)
	m := float64(bf.filter.Cap())
	k := float64(bf.filter.K())
	if m == 0 || k == 0 {
		return 0.0
	}
	return math.Pow(1-math.Exp(-k*n/m), k)
}
