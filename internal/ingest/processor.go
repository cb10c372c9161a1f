package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fystack/walletstream/internal/filter"
	"github.com/fystack/walletstream/internal/tokens"
	"github.com/fystack/walletstream/pkg/common/addrutil"
	"github.com/fystack/walletstream/pkg/common/constant"
	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/events"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
)

// RawEvent is one inbound event as delivered over the webhook. Data is kept
// loosely typed; the enrichment switch gives each variant its shape.
type RawEvent struct {
	EventID        string         `json:"eventId"`
	Status         int            `json:"status"`
	EventType      string         `json:"eventType"`
	MatchedAddress string         `json:"matchedAddress"`
	Direction      string         `json:"direction"`
	Network        string         `json:"network"`
	BlockNumber    uint64         `json:"blockNumber"`
	Slot           uint64         `json:"slot"`
	BlockTimestamp int64          `json:"blockTimestamp"`
	TxHash         string         `json:"txHash"`
	Data           map[string]any `json:"data"`
}

// Result is the batch acknowledgment: exact processed and skipped counts,
// deterministic for deterministic input.
type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// Processor validates, enriches, persists, and publishes inbound events.
// Events are independent: one event's failure never aborts the batch.
type Processor struct {
	users          repository.UserStore
	activities     repository.ActivityStore
	emitter        events.Emitter
	evmTokens      tokens.Resolver
	solTokens      tokens.Resolver
	defaultNetwork string
}

func NewProcessor(
	users repository.UserStore,
	activities repository.ActivityStore,
	emitter events.Emitter,
	evmTokens tokens.Resolver,
	solTokens tokens.Resolver,
	defaultNetwork string,
) *Processor {
	return &Processor{
		users:          users,
		activities:     activities,
		emitter:        emitter,
		evmTokens:      evmTokens,
		solTokens:      solTokens,
		defaultNetwork: defaultNetwork,
	}
}

// ProcessBatch runs every event through the gates and enrichment.
// Processed + Skipped always equals len(batch).
func (p *Processor) ProcessBatch(ctx context.Context, batch []RawEvent, metadata map[string]any) Result {
	batchNetwork := networkFromMetadata(metadata)

	var result Result
	for i := range batch {
		if p.processEvent(ctx, &batch[i], batchNetwork) {
			result.Processed++
		} else {
			result.Skipped++
		}
	}
	return result
}

// networkFromMetadata prefers the stream-level network hint over the plain
// network field.
func networkFromMetadata(metadata map[string]any) string {
	if network, ok := metadata["stream-network"].(string); ok && network != "" {
		return network
	}
	if network, ok := metadata["network"].(string); ok && network != "" {
		return network
	}
	return ""
}

func (p *Processor) processEvent(ctx context.Context, event *RawEvent, batchNetwork string) bool {
	// Validation gates, in order. Any failure skips this event only.
	if event.Status != constant.TxStatusSuccess {
		return false
	}
	if !recognizedEventType(event.EventType) {
		logger.Debug("Unrecognized event type", "eventType", event.EventType, "eventId", event.EventID)
		return false
	}
	family, ok := addrutil.DetectFamily(event.MatchedAddress)
	if event.MatchedAddress == "" || !ok {
		logger.Debug("Undetectable matched address", "address", event.MatchedAddress, "eventId", event.EventID)
		return false
	}
	direction := enum.Direction(event.Direction)
	if direction != enum.DirectionIn && direction != enum.DirectionOut {
		return false
	}
	if event.TxHash == "" {
		return false
	}
	if event.Data == nil {
		return false
	}
	// The persisted timestamp is derived from the block, never the wall
	// clock. An event without one is malformed.
	if event.BlockTimestamp <= 0 {
		logger.Debug("Missing block timestamp", "eventId", event.EventID)
		return false
	}
	network := batchNetwork
	if network == "" {
		network = event.Network
	}
	if network == "" {
		network = p.defaultNetwork
	}
	if network == "" {
		logger.Debug("No network resolvable", "eventId", event.EventID)
		return false
	}

	normalized := addrutil.Normalize(event.MatchedAddress, family)
	user, err := p.users.FindByWalletAddress(ctx, normalized)
	if err != nil {
		// Not an error: the address simply is not monitored here.
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("User lookup failed", "address", normalized, "err", err)
		}
		return false
	}

	details, ok := p.enrich(ctx, event, normalized, direction, network)
	if !ok {
		return false
	}

	serialized, err := json.Marshal(details)
	if err != nil {
		logger.Warn("Details serialization failed", "eventId", event.EventID, "err", err)
		return false
	}

	activity := &model.ActivityLog{
		UserID:       user.ID,
		TxHash:       event.TxHash,
		ActivityType: strings.ToUpper(event.EventType),
		Chain:        network,
		Direction:    direction,
		Details:      string(serialized),
		Timestamp:    time.Unix(event.BlockTimestamp, 0).UTC(),
	}
	if err := p.activities.Insert(ctx, activity); err != nil {
		logger.Error("Activity persist failed", "eventId", event.EventID, "txHash", event.TxHash, "err", err)
		return false
	}

	if p.emitter != nil {
		if err := p.emitter.EmitActivity(activity); err != nil {
			logger.Warn("Activity publish failed", "eventId", event.EventID, "err", err)
		}
	}
	return true
}

// enrich attaches formatted amounts, token identity, and from/to to the raw
// payload. Each variant validates its required fields first; a payload
// missing them is skipped, never persisted with degraded values. The switch
// is exhaustive over the recognized variants: a variant added to
// recognizedEventType without a case here falls through to the logged
// default and is skipped.
func (p *Processor) enrich(ctx context.Context, event *RawEvent, matched string, direction enum.Direction, network string) (map[string]any, bool) {
	details := make(map[string]any, len(event.Data)+4)
	for key, value := range event.Data {
		details[key] = value
	}

	switch filter.EventType(event.EventType) {
	case filter.EventTypeNativeTransfer:
		amountWei, ok := requiredString(event.Data, "amountWei")
		if !ok {
			return malformed(event)
		}
		details["amountFormatted"] = tokens.FormatWei(amountWei)

	case filter.EventTypeERC20Transfer:
		tokenAddress, okAddr := requiredString(event.Data, "tokenAddress")
		amountRaw, okAmount := requiredString(event.Data, "amountRaw")
		if !okAddr || !okAmount {
			return malformed(event)
		}
		token := p.evmTokens.Resolve(ctx, tokenAddress, network)
		details["token"] = token
		details["amountFormatted"] = tokens.FormatUnits(amountRaw, token.Decimals)

	case filter.EventTypeSolTransfer:
		amountLamports, ok := requiredString(event.Data, "amountLamports")
		if !ok {
			return malformed(event)
		}
		from, to := sidesFromDirection(matched, stringField(event.Data, "counterparty"), direction)
		details["from"] = from
		details["to"] = to
		details["amountFormatted"] = tokens.FormatLamports(amountLamports)

	case filter.EventTypeSplTransfer:
		mint, okMint := requiredString(event.Data, "mint")
		amountRaw, okAmount := requiredString(event.Data, "amountRaw")
		if !okMint || !okAmount {
			return malformed(event)
		}
		from, to := sidesFromDirection(matched, stringField(event.Data, "counterparty"), direction)
		details["from"] = from
		details["to"] = to
		token := p.solTokens.Resolve(ctx, mint, network)
		details["token"] = token
		details["amountFormatted"] = tokens.FormatUnits(amountRaw, token.Decimals)

	default:
		logger.Error("Recognized event type has no enrichment", "eventType", event.EventType)
		return nil, false
	}

	return details, true
}

func recognizedEventType(eventType string) bool {
	switch filter.EventType(eventType) {
	case filter.EventTypeNativeTransfer,
		filter.EventTypeERC20Transfer,
		filter.EventTypeSolTransfer,
		filter.EventTypeSplTransfer:
		return true
	}
	return false
}

// sidesFromDirection fills from/to for the chain family whose events carry
// only a counterparty: the matched address takes whichever side its
// direction implies.
func sidesFromDirection(matched, counterparty string, direction enum.Direction) (from, to string) {
	if direction == enum.DirectionOut {
		return matched, counterparty
	}
	return counterparty, matched
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}

// requiredString reads a variant field that must be present as a non-empty
// string. Anything else means the payload is malformed for its variant.
func requiredString(data map[string]any, key string) (string, bool) {
	value, ok := data[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func malformed(event *RawEvent) (map[string]any, bool) {
	logger.Debug("Malformed event data", "eventType", event.EventType, "eventId", event.EventID)
	return nil, false
}
