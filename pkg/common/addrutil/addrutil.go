package addrutil

import (
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fystack/walletstream/pkg/common/enum"
)

const solanaPubkeyLen = 32

// DetectFamily classifies an address by syntax. EVM addresses are 20-byte
// 0x-prefixed hex; Solana addresses are Base58-encoded 32-byte pubkeys.
func DetectFamily(address string) (enum.ChainFamily, bool) {
	if common.IsHexAddress(address) {
		return enum.ChainFamilyEVM, true
	}
	if len(address) >= 32 && len(address) <= 44 {
		if decoded := base58.Decode(address); len(decoded) == solanaPubkeyLen {
			return enum.ChainFamilySol, true
		}
	}
	return "", false
}

// Normalize applies the family's casing rule. EVM hex is lowercased; Solana
// Base58 is case-sensitive and left untouched. Normalizing twice yields the
// same result as normalizing once.
func Normalize(address string, family enum.ChainFamily) string {
	if family == enum.ChainFamilyEVM {
		return strings.ToLower(address)
	}
	return address
}
