package filter

// Raw shapes of the EVM "block with receipts" dataset. Numeric fields arrive
// as 0x-prefixed hex strings and are parsed on demand.

type EVMPayload struct {
	Data     []EVMBlockItem `json:"data"`
	Metadata Metadata       `json:"metadata"`
}

type EVMBlockItem struct {
	Block    *EVMBlock    `json:"block"`
	Receipts []EVMReceipt `json:"receipts"`
}

type EVMBlock struct {
	Number       string           `json:"number"`
	Timestamp    string           `json:"timestamp"`
	Transactions []EVMTransaction `json:"transactions"`
}

type EVMTransaction struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type EVMReceipt struct {
	TransactionHash string   `json:"transactionHash"`
	Status          string   `json:"status"`
	Logs            []EVMLog `json:"logs"`
}

type EVMLog struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex string   `json:"logIndex"`
}
