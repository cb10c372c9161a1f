package tokens

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fystack/walletstream/pkg/common/logger"
)

const (
	evmNativeDecimals    = 18
	solanaNativeDecimals = 9
)

// FormatUnits converts a raw integer amount to a decimal string by shifting
// the decimal point. Exact arithmetic throughout: raw amounts routinely
// exceed the float64-safe integer range. Trailing fractional zeros are
// trimmed ("1.500000" renders as "1.5", "1.000000" as "1").
func FormatUnits(raw string, decimals uint8) string {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		logger.Warn("Unparsable raw amount", "raw", raw)
		return "0"
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String()
}

// FormatWei formats an EVM native amount (18 decimals).
func FormatWei(raw string) string {
	return FormatUnits(raw, evmNativeDecimals)
}

// FormatLamports formats a Solana native amount (9 decimals).
func FormatLamports(raw string) string {
	return FormatUnits(raw, solanaNativeDecimals)
}
