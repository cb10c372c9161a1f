package filter

import (
	"encoding/json"
)

// Raw shapes of the Solana "block" dataset (jsonParsed encoding).

type SolanaPayload struct {
	Data     []SolanaBlock `json:"data"`
	Metadata Metadata      `json:"metadata"`
}

type SolanaBlock struct {
	ParentSlot   uint64      `json:"parentSlot"`
	BlockTime    int64       `json:"blockTime"`
	Transactions []SolanaTxn `json:"transactions"`
}

type SolanaTxn struct {
	Meta        *SolanaTxnMeta    `json:"meta"`
	Transaction SolanaTxnEnvelope `json:"transaction"`
}

type SolanaTxnMeta struct {
	Err               any                      `json:"err"`
	PreBalances       []uint64                 `json:"preBalances"`
	PostBalances      []uint64                 `json:"postBalances"`
	PreTokenBalances  []SolanaTokenBalance     `json:"preTokenBalances"`
	PostTokenBalances []SolanaTokenBalance     `json:"postTokenBalances"`
	InnerInstructions []SolanaInnerInstruction `json:"innerInstructions"`
}

type SolanaInnerInstruction struct {
	Index        uint64              `json:"index"`
	Instructions []SolanaInstruction `json:"instructions"`
}

type SolanaTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type SolanaTxnEnvelope struct {
	Message struct {
		AccountKeys  []SolanaAccountKey  `json:"accountKeys"`
		Instructions []SolanaInstruction `json:"instructions"`
	} `json:"message"`
	Signatures []string `json:"signatures"`
}

// SolanaAccountKey tolerates both encodings of accountKeys: a bare pubkey
// string or an object with a pubkey field.
type SolanaAccountKey struct {
	Pubkey string
}

func (k *SolanaAccountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	k.Pubkey = obj.Pubkey
	return nil
}

func (k SolanaAccountKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Pubkey)
}

type SolanaInstruction struct {
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"` // object for jsonParsed, may be "" otherwise
}

type solanaParsedInfo struct {
	Authority         string `json:"authority"`
	MultisigAuthority string `json:"multisigAuthority"`
}

// parsedInfo decodes the instruction's parsed payload, returning the zero
// value when the payload is absent or not an object.
func (i SolanaInstruction) parsedInfo() solanaParsedInfo {
	var parsed struct {
		Info solanaParsedInfo `json:"info"`
	}
	if len(i.Parsed) == 0 || i.Parsed[0] != '{' {
		return solanaParsedInfo{}
	}
	if err := json.Unmarshal(i.Parsed, &parsed); err != nil {
		return solanaParsedInfo{}
	}
	return parsed.Info
}

func (tx *SolanaTxn) signature() string {
	if len(tx.Transaction.Signatures) == 0 {
		return ""
	}
	return tx.Transaction.Signatures[0]
}

func (tx *SolanaTxn) succeeded() bool {
	return tx.Meta != nil && tx.Meta.Err == nil
}

// allInstructions returns top-level instructions followed by inner ones.
func (tx *SolanaTxn) allInstructions() []SolanaInstruction {
	instructions := tx.Transaction.Message.Instructions
	if tx.Meta == nil {
		return instructions
	}
	out := make([]SolanaInstruction, 0, len(instructions))
	out = append(out, instructions...)
	for _, inner := range tx.Meta.InnerInstructions {
		out = append(out, inner.Instructions...)
	}
	return out
}
