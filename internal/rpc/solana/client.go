package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client is a minimal JSON-RPC client for the token queries the pipeline
// needs. Block data arrives pre-parsed from upstream, so no block methods
// live here.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// GetTokenSupplyDecimals returns the mint's decimals via getTokenSupply.
// This is the authoritative source: list and search results may disagree.
func (c *Client) GetTokenSupplyDecimals(ctx context.Context, mint string) (uint8, error) {
	result, err := c.call(ctx, "getTokenSupply", []any{mint})
	if err != nil {
		return 0, err
	}

	var supply struct {
		Value struct {
			Decimals uint8 `json:"decimals"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &supply); err != nil {
		return 0, fmt.Errorf("decode getTokenSupply result: %w", err)
	}
	return supply.Value.Decimals, nil
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solana rpc: %s returned status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("solana rpc: %s failed: %s (code %d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}
