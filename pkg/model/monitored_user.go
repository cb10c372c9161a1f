package model

import (
	"github.com/fystack/walletstream/pkg/common/enum"
)

// MonitoredUser maps one canonical wallet address to a stable identity.
// WalletAddress is stored normalized per its chain family's casing rule.
type MonitoredUser struct {
	BaseModel
	WalletAddress string           `gorm:"not null;type:varchar(255);uniqueIndex:idx_unique_wallet_address" json:"wallet_address"`
	ChainFamily   enum.ChainFamily `gorm:"not null;type:varchar(16)"                                        json:"chain_family"`
	DisplayName   string           `gorm:"type:varchar(255)"                                                json:"display_name"`
}
