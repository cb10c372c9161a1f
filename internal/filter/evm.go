package filter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fystack/walletstream/internal/watchlist"
	"github.com/fystack/walletstream/pkg/addressbloomfilter"
	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/common/utils"
)

// keccak256("Transfer(address,address,uint256)")
const transferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// EVMFilter extracts native value transfers and ERC-20 Transfer logs touching
// monitored addresses from block-with-receipts payloads. Like the Solana
// filter it issues exactly one batched membership lookup per block.
type EVMFilter struct {
	store   watchlist.Store
	bloom   addressbloomfilter.WatchedAddressBloomFilter
	listKey string
}

func NewEVMFilter(
	store watchlist.Store,
	listKey string,
	bloom addressbloomfilter.WatchedAddressBloomFilter,
) *EVMFilter {
	return &EVMFilter{
		store:   store,
		bloom:   bloom,
		listKey: listKey,
	}
}

func (f *EVMFilter) Filter(ctx context.Context, payload *EVMPayload) ([]TransferEvent, error) {
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

func (f *EVMFilter) filterBlock(ctx context.Context, item *EVMBlockItem, network string) ([]TransferEvent, error) {
	if item.Block == nil {
		return nil, nil
	}

	candidates := f.collectCandidates(item)
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

	blockNumber, err := utils.ParseHexUint64(item.Block.Number)
	if err != nil {
		logger.Warn("Unparsable block number", "number", item.Block.Number)
	}
	blockTimestamp := int64(0)
	if ts, err := utils.ParseHexUint64(item.Block.Timestamp); err == nil {
		blockTimestamp = int64(ts)
	}

	receipts := make(map[string]*EVMReceipt, len(item.Receipts))
	for i := range item.Receipts {
		receipt := &item.Receipts[i]
		receipts[strings.ToLower(receipt.TransactionHash)] = receipt
	}

	var events []TransferEvent
	for i := range item.Block.Transactions {
		tx := &item.Block.Transactions[i]
		if event, ok := f.nativeEvent(tx, members, receipts, blockNumber, blockTimestamp, network); ok {
			events = append(events, event)
		}
	}
	for i := range item.Receipts {
		events = append(events, f.erc20Events(&item.Receipts[i], members, blockNumber, blockTimestamp, network)...)
	}
	return events, nil
}

// collectCandidates gathers transaction senders and recipients plus the
// from/to of every ERC-20 Transfer log, lowercased, sorted, deduplicated.
func (f *EVMFilter) collectCandidates(item *EVMBlockItem) []string {
	seen := make(map[string]struct{})
	add := func(addr string) {
		addr = strings.ToLower(addr)
		if addr == "" {
			return
		}
		if f.bloom != nil && !f.bloom.Contains(addr, enum.ChainFamilyEVM) {
			return
		}
		seen[addr] = struct{}{}
	}

	for _, tx := range item.Block.Transactions {
		add(tx.From)
		add(tx.To)
	}
	for _, receipt := range item.Receipts {
		for _, log := range receipt.Logs {
			from, to, ok := transferLogParticipants(&log)
			if !ok {
				continue
			}
			add(from)
			add(to)
		}
	}

	candidates := make([]string, 0, len(seen))
	for addr := range seen {
		candidates = append(candidates, addr)
	}
	sort.Strings(candidates)
	return candidates
}

func (f *EVMFilter) nativeEvent(
	tx *EVMTransaction,
	members map[string]bool,
	receipts map[string]*EVMReceipt,
	blockNumber uint64,
	blockTimestamp int64,
	network string,
) (TransferEvent, bool) {
	from := strings.ToLower(tx.From)
	to := strings.ToLower(tx.To)
	fromMonitored := members[from]
	toMonitored := members[to]
	if !fromMonitored && !toMonitored {
		return TransferEvent{}, false
	}

	value, err := utils.ParseHexBigInt(tx.Value)
	if err != nil || value.Sign() == 0 {
		return TransferEvent{}, false
	}

	// When both sides are monitored the sender wins: one event per
	// transaction, outgoing.
	matched, direction, counterparty := to, enum.DirectionIn, from
	if fromMonitored {
		matched, direction, counterparty = from, enum.DirectionOut, to
	}

	status := 0
	if receipt, ok := receipts[strings.ToLower(tx.Hash)]; ok {
		if parsed, err := utils.ParseHexUint64(receipt.Status); err == nil {
			status = int(parsed)
		}
	}

	return TransferEvent{
		EventID:        tx.Hash + ":native",
		Status:         status,
		EventType:      EventTypeNativeTransfer,
		MatchedAddress: matched,
		Direction:      direction,
		Network:        network,
		BlockNumber:    blockNumber,
		BlockTimestamp: blockTimestamp,
		TxHash:         tx.Hash,
		Data: NativeTransferData{
			AmountWei:    value.String(),
			From:         from,
			To:           to,
			Counterparty: counterparty,
		},
	}, true
}

func (f *EVMFilter) erc20Events(
	receipt *EVMReceipt,
	members map[string]bool,
	blockNumber uint64,
	blockTimestamp int64,
	network string,
) []TransferEvent {
	status := 0
	if parsed, err := utils.ParseHexUint64(receipt.Status); err == nil {
		status = int(parsed)
	}

	var events []TransferEvent
	for _, log := range receipt.Logs {
		from, to, ok := transferLogParticipants(&log)
		if !ok {
			continue
		}
		fromMonitored := members[from]
		toMonitored := members[to]
		if !fromMonitored && !toMonitored {
			continue
		}

		amount, err := utils.ParseHexBigInt(log.Data)
		if err != nil {
			logger.Warn("Unparsable transfer amount", "tx", receipt.TransactionHash, "data", log.Data)
			continue
		}

		matched, direction, counterparty := to, enum.DirectionIn, from
		if fromMonitored {
			matched, direction, counterparty = from, enum.DirectionOut, to
		}

		event := TransferEvent{
			EventID:        eventIDForLog(receipt.TransactionHash, log.LogIndex),
			Status:         status,
			EventType:      EventTypeERC20Transfer,
			MatchedAddress: matched,
			Direction:      direction,
			Network:        network,
			BlockNumber:    blockNumber,
			BlockTimestamp: blockTimestamp,
			TxHash:         receipt.TransactionHash,
			Data: ERC20TransferData{
				TokenAddress: strings.ToLower(log.Address),
				AmountRaw:    amount.String(),
				From:         from,
				To:           to,
				Counterparty: counterparty,
			},
		}
		if index, err := utils.ParseHexUint64(log.LogIndex); err == nil {
			event.LogIndex = &index
		}
		events = append(events, event)
	}
	return events
}

// transferLogParticipants decodes an ERC-20 Transfer log's indexed from/to
// topics, lowercased. ERC-721 Transfer logs share the topic0 but carry the
// token id as a third indexed topic and no data payload.
func transferLogParticipants(log *EVMLog) (from, to string, ok bool) {
	if len(log.Topics) != 3 || strings.ToLower(log.Topics[0]) != transferTopic0 {
		return "", "", false
	}
	from, ok = topicToAddress(log.Topics[1])
	if !ok {
		return "", "", false
	}
	to, ok = topicToAddress(log.Topics[2])
	if !ok {
		return "", "", false
	}
	return from, to, true
}

// topicToAddress extracts the 20-byte address from a 32-byte indexed topic.
func topicToAddress(topic string) (string, bool) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if !strings.HasPrefix(topic, "0x") || len(topic) != 66 {
		return "", false
	}
	return "0x" + topic[26:], true
}

// eventIDForLog builds the deterministic id for a log-derived event. An
// unparsable log index degrades to the literal "unknown" rather than
// dropping the event.
func eventIDForLog(txHash, logIndex string) string {
	if index, err := utils.ParseHexUint64(logIndex); err == nil {
		return fmt.Sprintf("%s:%d", txHash, index)
	}
	return txHash + ":unknown"
}
