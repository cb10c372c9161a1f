package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 10 * time.Second

// Token is one entry of the Jupiter token API. The API has shipped both
// "address" and "id" as the mint field, and both bare arrays and wrapped
// objects as list payloads; decoding tolerates all of them.
type Token struct {
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
}

func (t *Token) UnmarshalJSON(data []byte) error {
	var raw struct {
		Address  string `json:"address"`
		ID       string `json:"id"`
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Address = raw.Address
	if t.Address == "" {
		t.Address = raw.ID
	}
	t.Name = raw.Name
	t.Symbol = raw.Symbol
	t.Decimals = raw.Decimals
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Verified fetches the full verified token list.
func (c *Client) Verified(ctx context.Context) ([]Token, error) {
	return c.get(ctx, c.baseURL+"/tag?query=verified")
}

// Search queries the token API for a single mint.
func (c *Client) Search(ctx context.Context, query string) ([]Token, error) {
	return c.get(ctx, c.baseURL+"/search?query="+url.QueryEscape(query))
}

func (c *Client) get(ctx context.Context, endpoint string) ([]Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: status %d from %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeTokenList(body)
}

// decodeTokenList accepts a bare array, {"data": [...]}, or {"tokens": [...]}.
func decodeTokenList(body []byte) ([]Token, error) {
	var tokens []Token
	if err := json.Unmarshal(body, &tokens); err == nil {
		return tokens, nil
	}

	var wrapped struct {
		Data   []Token `json:"data"`
		Tokens []Token `json:"tokens"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("jupiter: unrecognized payload: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.Tokens, nil
}
