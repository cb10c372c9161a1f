package model

// Token is a resolved token identity, cached once per address/mint.
type Token struct {
	Address  string `gorm:"primarykey;type:varchar(128)" json:"address"`
	Name     string `gorm:"type:varchar(255)"            json:"name"`
	Symbol   string `gorm:"type:varchar(64)"             json:"symbol"`
	Decimals uint8  `gorm:"not null"                     json:"decimals"`
	Chain    string `gorm:"type:varchar(64)"             json:"chain"`
}
