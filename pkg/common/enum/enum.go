package enum

// ChainFamily groups networks by address semantics. EVM addresses are
// case-insensitive hex and stored lowercased; Solana addresses are Base58
// and case-sensitive, stored verbatim.
type ChainFamily string

const (
	ChainFamilyEVM ChainFamily = "evm"
	ChainFamilySol ChainFamily = "sol"
)

type WatchlistStoreType string

const (
	WatchlistStoreTypeHTTP   WatchlistStoreType = "http"
	WatchlistStoreTypeBadger WatchlistStoreType = "badger"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)
