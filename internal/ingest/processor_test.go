package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
)

const (
	evmWallet   = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	evmToken    = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	solWallet   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solOther    = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	wrappedMint = "So11111111111111111111111111111111111111112"
)

type fakeUserStore struct {
	users map[string]*model.MonitoredUser
}

func (s *fakeUserStore) FindByWalletAddress(ctx context.Context, address string) (*model.MonitoredUser, error) {
	if user, ok := s.users[address]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) ListWalletAddresses(ctx context.Context, family enum.ChainFamily, limit, offset int) ([]string, error) {
	return nil, nil
}

type fakeActivityStore struct {
	activities []*model.ActivityLog
	failFirst  bool
	inserts    int
}

func (s *fakeActivityStore) Insert(ctx context.Context, activity *model.ActivityLog) error {
	s.inserts++
	if s.failFirst && s.inserts == 1 {
		return errors.New("insert failed")
	}
	s.activities = append(s.activities, activity)
	return nil
}

type fakeEmitter struct {
	emitted []*model.ActivityLog
	err     error
}

func (e *fakeEmitter) EmitActivity(activity *model.ActivityLog) error {
	e.emitted = append(e.emitted, activity)
	return e.err
}

func (e *fakeEmitter) Close() {}

type fakeResolver struct {
	token model.Token
	calls []string
}

func (r *fakeResolver) Resolve(ctx context.Context, address, network string) model.Token {
	r.calls = append(r.calls, address+"@"+network)
	token := r.token
	token.Address = address
	return token
}

type fixture struct {
	processor  *Processor
	users      *fakeUserStore
	activities *fakeActivityStore
	emitter    *fakeEmitter
	evmTokens  *fakeResolver
	solTokens  *fakeResolver
}

func newFixture() *fixture {
	users := &fakeUserStore{users: map[string]*model.MonitoredUser{}}
	users.users[evmWallet] = &model.MonitoredUser{
		BaseModel:     model.BaseModel{ID: "user-evm"},
		WalletAddress: evmWallet,
		ChainFamily:   enum.ChainFamilyEVM,
	}
	users.users[solWallet] = &model.MonitoredUser{
		BaseModel:     model.BaseModel{ID: "user-sol"},
		WalletAddress: solWallet,
		ChainFamily:   enum.ChainFamilySol,
	}

	activities := &fakeActivityStore{}
	emitter := &fakeEmitter{}
	evmTokens := &fakeResolver{token: model.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6}}
	solTokens := &fakeResolver{token: model.Token{Name: "Wrapped SOL", Symbol: "SOL", Decimals: 9}}

	return &fixture{
		processor:  NewProcessor(users, activities, emitter, evmTokens, solTokens, "ethereum-mainnet"),
		users:      users,
		activities: activities,
		emitter:    emitter,
		evmTokens:  evmTokens,
		solTokens:  solTokens,
	}
}

func details(t *testing.T, activity *model.ActivityLog) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(activity.Details), &decoded))
	return decoded
}

func TestProcessBatchNativeTransfer(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		EventID:        "0xabc:native",
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xabc",
		Data:           map[string]any{"amountWei": "1500000000000000000"},
	}}, map[string]any{"network": "ethereum-mainnet"})

	assert.Equal(t, Result{Processed: 1, Skipped: 0}, result)
	require.Len(t, f.activities.activities, 1)

	activity := f.activities.activities[0]
	assert.Equal(t, "user-evm", activity.UserID)
	assert.Equal(t, "NATIVETRANSFER", activity.ActivityType)
	assert.Equal(t, "ethereum-mainnet", activity.Chain)
	assert.Equal(t, enum.DirectionOut, activity.Direction)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), activity.Timestamp)
	assert.Equal(t, "1.5", details(t, activity)["amountFormatted"])

	require.Len(t, f.emitter.emitted, 1)
	assert.Same(t, activity, f.emitter.emitted[0])
}

func TestProcessBatchInvalidEvents(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{
		{
			Status:         0, // failed on-chain
			EventType:      "nativeTransfer",
			MatchedAddress: evmWallet,
			Direction:      "out",
			TxHash:         "0x1",
			Data:           map[string]any{"amountWei": "1"},
		},
		{
			Status:         1, // missing eventType
			MatchedAddress: evmWallet,
			Direction:      "in",
			TxHash:         "0x2",
			Data:           map[string]any{"amountWei": "1"},
		},
	}, nil)

	assert.Equal(t, Result{Processed: 0, Skipped: 2}, result)
	assert.Empty(t, f.activities.activities)
}

func TestProcessBatchERC20UsesResolvedDecimals(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "erc20Transfer",
		MatchedAddress: evmWallet,
		Direction:      "in",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xfeed",
		Data: map[string]any{
			"tokenAddress": evmToken,
			"amountRaw":    "1234567",
			"from":         "0x53d284357ec70ce289d6d64134dfac8e511c8a3d",
			"to":           evmWallet,
		},
	}}, map[string]any{"network": "ethereum-mainnet"})

	assert.Equal(t, Result{Processed: 1}, result)
	require.Len(t, f.activities.activities, 1)

	decoded := details(t, f.activities.activities[0])
	assert.Equal(t, "1.234567", decoded["amountFormatted"])
	token, ok := decoded["token"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "USDC", token["symbol"])

	require.Len(t, f.evmTokens.calls, 1)
	assert.Equal(t, evmToken+"@ethereum-mainnet", f.evmTokens.calls[0])
}

func TestProcessBatchSolTransferPreservesCase(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "solTransfer",
		MatchedAddress: solWallet,
		Direction:      "in",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "sig1",
		Data: map[string]any{
			"amountLamports": "2500000000",
			"counterparty":   solOther,
		},
	}}, map[string]any{"stream-network": "solana-mainnet"})

	assert.Equal(t, Result{Processed: 1}, result)
	require.Len(t, f.activities.activities, 1)

	activity := f.activities.activities[0]
	assert.Equal(t, "user-sol", activity.UserID, "Base58 address looked up verbatim")

	decoded := details(t, activity)
	assert.Equal(t, solOther, decoded["from"])
	assert.Equal(t, solWallet, decoded["to"], "casing preserved in persisted fields")
	assert.Equal(t, "2.5", decoded["amountFormatted"])
}

func TestProcessBatchSplTransfer(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "splTransfer",
		MatchedAddress: solWallet,
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "sig2",
		Data: map[string]any{
			"mint":         wrappedMint,
			"amountRaw":    "1000000000",
			"counterparty": solOther,
		},
	}}, map[string]any{"stream-network": "solana-mainnet"})

	assert.Equal(t, Result{Processed: 1}, result)
	require.Len(t, f.activities.activities, 1)

	decoded := details(t, f.activities.activities[0])
	assert.Equal(t, solWallet, decoded["from"])
	assert.Equal(t, solOther, decoded["to"])
	assert.Equal(t, "1", decoded["amountFormatted"])

	require.Len(t, f.solTokens.calls, 1)
	assert.Equal(t, wrappedMint+"@solana-mainnet", f.solTokens.calls[0])
}

func TestProcessBatchMalformedVariantDataSkipped(t *testing.T) {
	base := RawEvent{
		Status:         1,
		MatchedAddress: evmWallet,
		Direction:      "in",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xbad",
	}

	tests := []struct {
		name      string
		eventType string
		data      map[string]any
	}{
		{"erc20 without token fields", "erc20Transfer", map[string]any{"unrelated": true}},
		{"erc20 non-string amount", "erc20Transfer", map[string]any{"tokenAddress": evmToken, "amountRaw": 1234567}},
		{"native without amount", "nativeTransfer", map[string]any{"from": evmWallet}},
		{"spl without mint", "splTransfer", map[string]any{"amountRaw": "5"}},
		{"sol without lamports", "solTransfer", map[string]any{"counterparty": solOther}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			event := base
			event.EventType = tt.eventType
			if tt.eventType == "solTransfer" || tt.eventType == "splTransfer" {
				event.MatchedAddress = solWallet
			}
			event.Data = tt.data

			result := f.processor.ProcessBatch(context.Background(), []RawEvent{event},
				map[string]any{"network": "ethereum-mainnet"})

			assert.Equal(t, Result{Processed: 0, Skipped: 1}, result)
			assert.Empty(t, f.activities.activities)
			assert.Empty(t, f.evmTokens.calls, "no token resolution for malformed payloads")
			assert.Empty(t, f.solTokens.calls)
		})
	}
}

func TestProcessBatchMissingBlockTimestampSkipped(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: evmWallet,
		Direction:      "out",
		TxHash:         "0xabc",
		Data:           map[string]any{"amountWei": "1"},
	}}, nil)

	assert.Equal(t, Result{Processed: 0, Skipped: 1}, result)
	assert.Empty(t, f.activities.activities, "no wall-clock fallback timestamp")
}

func TestProcessBatchUnmonitoredAddressSkipped(t *testing.T) {
	f := newFixture()

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: "0x0000000000000000000000000000000000000001",
		Direction:      "in",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0x9",
		Data:           map[string]any{"amountWei": "1"},
	}}, nil)

	assert.Equal(t, Result{Processed: 0, Skipped: 1}, result)
}

func TestProcessBatchPersistFailureContinues(t *testing.T) {
	f := newFixture()
	f.activities.failFirst = true

	event := RawEvent{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: evmWallet,
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xabc",
		Data:           map[string]any{"amountWei": "1000000000000000000"},
	}

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{event, event}, nil)

	assert.Equal(t, Result{Processed: 1, Skipped: 1}, result)
	assert.Len(t, f.activities.activities, 1)
	assert.Len(t, f.emitter.emitted, 1, "failed persist publishes nothing")
}

func TestProcessBatchPublishFailureStillProcessed(t *testing.T) {
	f := newFixture()
	f.emitter.err = errors.New("no subscribers")

	result := f.processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: evmWallet,
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xabc",
		Data:           map[string]any{"amountWei": "1"},
	}}, nil)

	assert.Equal(t, Result{Processed: 1}, result)
}

func TestProcessBatchNetworkResolutionOrder(t *testing.T) {
	f := newFixture()

	event := RawEvent{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: evmWallet,
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xabc",
		Network:        "polygon-mainnet",
		Data:           map[string]any{"amountWei": "1"},
	}

	// Batch metadata wins over the per-event field.
	f.processor.ProcessBatch(context.Background(), []RawEvent{event},
		map[string]any{"stream-network": "base-mainnet"})
	require.Len(t, f.activities.activities, 1)
	assert.Equal(t, "base-mainnet", f.activities.activities[0].Chain)

	// No metadata: the event's own network applies.
	f.processor.ProcessBatch(context.Background(), []RawEvent{event}, nil)
	require.Len(t, f.activities.activities, 2)
	assert.Equal(t, "polygon-mainnet", f.activities.activities[1].Chain)

	// Neither: configured default.
	event.Network = ""
	f.processor.ProcessBatch(context.Background(), []RawEvent{event}, nil)
	require.Len(t, f.activities.activities, 3)
	assert.Equal(t, "ethereum-mainnet", f.activities.activities[2].Chain)
}

func TestProcessBatchNoNetworkResolvableSkips(t *testing.T) {
	f := newFixture()
	processor := NewProcessor(f.users, f.activities, f.emitter, f.evmTokens, f.solTokens, "")

	result := processor.ProcessBatch(context.Background(), []RawEvent{{
		Status:         1,
		EventType:      "nativeTransfer",
		MatchedAddress: evmWallet,
		Direction:      "out",
		BlockTimestamp: 1_700_000_000,
		TxHash:         "0xabc",
		Data:           map[string]any{"amountWei": "1"},
	}}, nil)

	assert.Equal(t, Result{Processed: 0, Skipped: 1}, result)
}

func TestProcessBatchAccounting(t *testing.T) {
	f := newFixture()

	batch := []RawEvent{
		{Status: 1, EventType: "nativeTransfer", MatchedAddress: evmWallet, Direction: "out", BlockTimestamp: 1_700_000_000, TxHash: "0x1", Data: map[string]any{"amountWei": "1"}},
		{Status: 0},
		{Status: 1, EventType: "bogus"},
		{Status: 1, EventType: "solTransfer", MatchedAddress: solWallet, Direction: "bad", TxHash: "s"},
		{Status: 1, EventType: "nativeTransfer", MatchedAddress: evmWallet, Direction: "in", TxHash: "", Data: map[string]any{}},
	}

	result := f.processor.ProcessBatch(context.Background(), batch, nil)
	assert.Equal(t, len(batch), result.Processed+result.Skipped)
	assert.Equal(t, Result{Processed: 1, Skipped: 4}, result)
}
