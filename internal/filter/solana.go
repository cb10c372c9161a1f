package filter

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/fystack/walletstream/internal/watchlist"
	"github.com/fystack/walletstream/pkg/addressbloomfilter"
	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/common/logger"
)

const (
	voteProgramID          = "Vote111111111111111111111111111111111111111"
	computeBudgetProgramID = "ComputeBudget111111111111111111111111111111"
	addressLookupProgramID = "AddressLookupTab1e1111111111111111111111111"

	tokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// Programs whose transactions carry no balance movement worth inspecting.
// A transaction made up exclusively of these is skipped before any balance
// work happens.
var ignorablePrograms = map[string]struct{}{
	voteProgramID:          {},
	computeBudgetProgramID: {},
	addressLookupProgramID: {},
}

var tokenPrograms = map[string]struct{}{
	tokenProgramID:     {},
	token2022ProgramID: {},
}

// SolanaFilter extracts native (lamport) and SPL token transfers touching
// monitored addresses from raw block payloads. Membership is resolved with a
// single batched lookup per block; the optional bloom prefilter prunes
// candidates that are definitely not watched before that lookup.
type SolanaFilter struct {
	store   watchlist.Store
	bloom   addressbloomfilter.WatchedAddressBloomFilter
	listKey string
	dust    uint64
}

func NewSolanaFilter(
	store watchlist.Store,
	listKey string,
	dustLamports uint64,
	bloom addressbloomfilter.WatchedAddressBloomFilter,
) *SolanaFilter {
	return &SolanaFilter{
		store:   store,
		bloom:   bloom,
		listKey: listKey,
		dust:    dustLamports,
	}
}

// Filter processes every block in the payload. Membership failures abort the
// whole call so the delivery can be retried rather than acknowledged with
// silently dropped events.
func (f *SolanaFilter) Filter(ctx context.Context, payload *SolanaPayload) ([]TransferEvent, error) {
	var events []TransferEvent
	for i := range payload.Data {
		blockEvents, err := f.filterBlock(ctx, &payload.Data[i], payload.Metadata.Network)
		if err != nil {
			return nil, err
		}
		events = append(events, blockEvents...)
	}
	return events, nil
}

func (f *SolanaFilter) filterBlock(ctx context.Context, block *SolanaBlock, network string) ([]TransferEvent, error) {
	candidates := f.collectCandidates(block)
	if len(candidates) == 0 {
		return nil, nil
	}

	results, err := f.store.ContainsBatch(ctx, f.listKey, candidates)
	if err != nil {
		return nil, fmt.Errorf("membership lookup failed: %w", err)
	}
	members := make(map[string]bool, len(candidates))
	for i, candidate := range candidates {
		if results[i] {
			members[candidate] = true
		}
	}
	if len(members) == 0 {
		return nil, nil
	}

	var slot uint64
	if block.ParentSlot != 0 {
		slot = block.ParentSlot + 1
	}

	var events []TransferEvent
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if shouldSkipTransaction(tx) {
			continue
		}
		events = append(events, f.nativeEvents(tx, members, slot, block.BlockTime, network)...)
		events = append(events, f.splEvents(tx, members, slot, block.BlockTime, network)...)
	}
	return events, nil
}

// collectCandidates gathers every address a transfer event could name:
// accounts whose lamport balance moved, token balance owners, and token
// program instruction authorities. The result is sorted and deduplicated so
// the batched lookup is deterministic.
func (f *SolanaFilter) collectCandidates(block *SolanaBlock) []string {
	seen := make(map[string]struct{})
	add := func(addr string) {
		if addr == "" {
			return
		}
		if f.bloom != nil && !f.bloom.Contains(addr, enum.ChainFamilySol) {
			return
		}
		seen[addr] = struct{}{}
	}

	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if shouldSkipTransaction(tx) {
			continue
		}
		for _, delta := range balanceDeltas(tx) {
			if delta.delta != 0 {
				add(delta.address)
			}
		}
		if tx.Meta != nil {
			for _, balance := range tx.Meta.PreTokenBalances {
				add(balance.Owner)
			}
			for _, balance := range tx.Meta.PostTokenBalances {
				add(balance.Owner)
			}
		}
		for _, instruction := range tx.allInstructions() {
			if _, ok := tokenPrograms[instruction.ProgramID]; !ok {
				continue
			}
			info := instruction.parsedInfo()
			add(info.Authority)
			add(info.MultisigAuthority)
		}
	}

	candidates := make([]string, 0, len(seen))
	for addr := range seen {
		candidates = append(candidates, addr)
	}
	sort.Strings(candidates)
	return candidates
}

// shouldSkipTransaction reports whether every instruction belongs to an
// ignorable program. Transactions with no instructions are kept: balance
// movement can still come from elsewhere in the block.
func shouldSkipTransaction(tx *SolanaTxn) bool {
	instructions := tx.Transaction.Message.Instructions
	if len(instructions) == 0 {
		return false
	}
	for _, instruction := range instructions {
		if _, ok := ignorablePrograms[instruction.ProgramID]; !ok {
			return false
		}
	}
	return true
}

type accountDelta struct {
	address string
	delta   int64
}

// balanceDeltas pairs account keys with their lamport movement, in account
// order. Length mismatches between keys and balances are clamped.
func balanceDeltas(tx *SolanaTxn) []accountDelta {
	if tx.Meta == nil {
		return nil
	}
	keys := tx.Transaction.Message.AccountKeys
	n := len(keys)
	if len(tx.Meta.PreBalances) < n {
		n = len(tx.Meta.PreBalances)
	}
	if len(tx.Meta.PostBalances) < n {
		n = len(tx.Meta.PostBalances)
	}

	deltas := make([]accountDelta, 0, n)
	for i := 0; i < n; i++ {
		deltas = append(deltas, accountDelta{
			address: keys[i].Pubkey,
			delta:   int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i]),
		})
	}
	return deltas
}

func (f *SolanaFilter) nativeEvents(tx *SolanaTxn, members map[string]bool, slot uint64, blockTime int64, network string) []TransferEvent {
	deltas := balanceDeltas(tx)
	if len(deltas) == 0 {
		return nil
	}

	status := 0
	if tx.succeeded() {
		status = 1
	}
	signature := tx.signature()

	var events []TransferEvent
	for _, d := range deltas {
		if !members[d.address] || d.delta == 0 {
			continue
		}
		abs := d.delta
		if abs < 0 {
			abs = -abs
		}
		// Rent adjustments and fee-level noise stay below the dust
		// threshold and never become events.
		if uint64(abs) <= f.dust {
			continue
		}

		direction := enum.DirectionIn
		if d.delta < 0 {
			direction = enum.DirectionOut
		}

		events = append(events, TransferEvent{
			EventID:        fmt.Sprintf("%s:sol:%s", signature, d.address),
			Status:         status,
			EventType:      EventTypeSolTransfer,
			MatchedAddress: d.address,
			Direction:      direction,
			Network:        network,
			Slot:           slot,
			BlockTimestamp: blockTime,
			TxHash:         signature,
			Data: SolTransferData{
				AmountLamports: strconv.FormatInt(abs, 10),
				Counterparty:   nativeCounterparty(deltas, d),
			},
		})
	}
	return events
}

// nativeCounterparty picks the account with the largest balance movement in
// the opposite direction. Heuristic only: multi-party transactions may not
// have a single true counterparty.
func nativeCounterparty(deltas []accountDelta, matched accountDelta) string {
	var best accountDelta
	var bestAbs int64
	for _, d := range deltas {
		if d.address == matched.address {
			continue
		}
		if (matched.delta > 0) == (d.delta > 0) || d.delta == 0 {
			continue
		}
		abs := d.delta
		if abs < 0 {
			abs = -abs
		}
		if abs > bestAbs {
			best = d
			bestAbs = abs
		}
	}
	return best.address
}

type splAccountState struct {
	mint  string
	owner string
	pre   *big.Int
	post  *big.Int
}

func (s *splAccountState) delta() *big.Int {
	pre := s.pre
	if pre == nil {
		pre = new(big.Int)
	}
	post := s.post
	if post == nil {
		post = new(big.Int)
	}
	return new(big.Int).Sub(post, pre)
}

func (f *SolanaFilter) splEvents(tx *SolanaTxn, members map[string]bool, slot uint64, blockTime int64, network string) []TransferEvent {
	if tx.Meta == nil {
		return nil
	}

	states := make(map[int]*splAccountState)
	get := func(index int) *splAccountState {
		state, ok := states[index]
		if !ok {
			state = &splAccountState{}
			states[index] = state
		}
		return state
	}
	for _, balance := range tx.Meta.PreTokenBalances {
		state := get(balance.AccountIndex)
		state.pre = parseTokenAmount(balance.UITokenAmount.Amount)
		state.mint = balance.Mint
		state.owner = balance.Owner
	}
	for _, balance := range tx.Meta.PostTokenBalances {
		state := get(balance.AccountIndex)
		state.post = parseTokenAmount(balance.UITokenAmount.Amount)
		if state.mint == "" {
			state.mint = balance.Mint
		}
		if state.owner == "" {
			state.owner = balance.Owner
		}
	}
	if len(states) == 0 {
		return nil
	}

	indices := make([]int, 0, len(states))
	for index := range states {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	status := 0
	if tx.succeeded() {
		status = 1
	}
	signature := tx.signature()
	keys := tx.Transaction.Message.AccountKeys

	// One event per owner/mint/direction per transaction. A swap touching
	// several token accounts of the same owner collapses into one entry
	// per side.
	emitted := make(map[string]struct{})

	var events []TransferEvent
	for _, index := range indices {
		state := states[index]
		if !members[state.owner] {
			continue
		}
		delta := state.delta()
		if delta.Sign() == 0 {
			continue
		}

		direction := enum.DirectionIn
		if delta.Sign() < 0 {
			direction = enum.DirectionOut
		}
		dedupKey := state.owner + ":" + state.mint + ":" + string(direction)
		if _, ok := emitted[dedupKey]; ok {
			continue
		}
		emitted[dedupKey] = struct{}{}

		tokenAccount := ""
		if index >= 0 && index < len(keys) {
			tokenAccount = keys[index].Pubkey
		}

		events = append(events, TransferEvent{
			EventID:        fmt.Sprintf("%s:spl:%d", signature, index),
			Status:         status,
			EventType:      EventTypeSplTransfer,
			MatchedAddress: state.owner,
			Direction:      direction,
			Network:        network,
			Slot:           slot,
			BlockTimestamp: blockTime,
			TxHash:         signature,
			Data: SplTransferData{
				Mint:         state.mint,
				AmountRaw:    new(big.Int).Abs(delta).String(),
				TokenAccount: tokenAccount,
				Counterparty: splCounterparty(states, indices, index),
			},
		})
	}
	return events
}

// splCounterparty finds the first other token account of the same mint whose
// balance moved the opposite way, and names its owner. The owner may equal
// the matched owner when a wallet moves tokens between its own accounts.
func splCounterparty(states map[int]*splAccountState, indices []int, matchedIndex int) string {
	matched := states[matchedIndex]
	matchedSign := matched.delta().Sign()
	for _, index := range indices {
		if index == matchedIndex {
			continue
		}
		other := states[index]
		if other.mint != matched.mint {
			continue
		}
		if other.delta().Sign() == -matchedSign {
			return other.owner
		}
	}
	return ""
}

func parseTokenAmount(amount string) *big.Int {
	if amount == "" {
		return new(big.Int)
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		logger.Warn("Unparsable token amount", "amount", amount)
		return new(big.Int)
	}
	return value
}
