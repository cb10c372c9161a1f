package filter

import (
	"github.com/fystack/walletstream/pkg/common/enum"
)

type EventType string

const (
	EventTypeNativeTransfer EventType = "nativeTransfer"
	EventTypeERC20Transfer  EventType = "erc20Transfer"
	EventTypeSolTransfer    EventType = "solTransfer"
	EventTypeSplTransfer    EventType = "splTransfer"
)

// Metadata is the stream-level context delivered alongside block data.
type Metadata struct {
	Network string `json:"network"`
}

// TransferEvent is the normalized output of a block filter. EventID is
// deterministic (transaction signature plus a type/index suffix) so repeated
// delivery of the same block is detectable downstream.
type TransferEvent struct {
	EventID        string         `json:"eventId"`
	Status         int            `json:"status"`
	EventType      EventType      `json:"eventType"`
	MatchedAddress string         `json:"matchedAddress"`
	Direction      enum.Direction `json:"direction"`
	Network        string         `json:"network,omitempty"`
	BlockNumber    uint64         `json:"blockNumber,omitempty"`
	Slot           uint64         `json:"slot,omitempty"`
	BlockTimestamp int64          `json:"blockTimestamp,omitempty"`
	TxHash         string         `json:"txHash"`
	LogIndex       *uint64        `json:"logIndex,omitempty"`
	Data           any            `json:"data"`
}

type NativeTransferData struct {
	AmountWei    string `json:"amountWei"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}

type ERC20TransferData struct {
	TokenAddress string `json:"tokenAddress"`
	AmountRaw    string `json:"amountRaw"` // uint256, not adjusted for decimals
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}

type SolTransferData struct {
	AmountLamports string `json:"amountLamports"`
	Counterparty   string `json:"counterparty,omitempty"`
}

type SplTransferData struct {
	Mint         string `json:"mint"`
	AmountRaw    string `json:"amountRaw"`
	TokenAccount string `json:"tokenAccount,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}
