package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/lo"

	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/retry"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	batchRetryInterval     = 500 * time.Millisecond
	batchRetryMaxElapsed   = 10 * time.Second
	headerAPIKey           = "x-api-key"
	headerContentType      = "Content-Type"
	contentTypeJSON        = "application/json"
)

// HTTPStore talks to the hosted keyed-list service. A missing API key is a
// configuration error raised at construction, not a per-call failure.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPStore(baseURL, apiKey string) (*HTTPStore, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &HTTPStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

func (s *HTTPStore) Add(ctx context.Context, listKey, item string) error {
	body := map[string]string{"item": NormalizeItem(item, listKey)}
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/lists/%s/items", url.PathEscape(listKey)), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("watchlist: add failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) Remove(ctx context.Context, listKey, item string) (bool, error) {
	normalized := NormalizeItem(item, listKey)
	path := fmt.Sprintf("/lists/%s/items/%s", url.PathEscape(listKey), url.PathEscape(normalized))
	resp, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode < 300, nil
}

func (s *HTTPStore) Contains(ctx context.Context, listKey, item string) (bool, error) {
	normalized := NormalizeItem(item, listKey)
	path := fmt.Sprintf("/lists/%s/contains/%s", url.PathEscape(listKey), url.PathEscape(normalized))
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return false, nil
	}

	var payload struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, err
	}
	return payload.Exists, nil
}

// ContainsBatch is the one membership query the block filter issues per
// block. The lookup is an idempotent read, so transient failures are retried
// with backoff before the block-level failure is surfaced.
func (s *HTTPStore) ContainsBatch(ctx context.Context, listKey string, items []string) ([]bool, error) {
	normalized := lo.Map(items, func(item string, _ int) string {
		return NormalizeItem(item, listKey)
	})

	var results []bool
	err := retry.Exponential(ctx, func() error {
		hits, err := s.containsBatchOnce(ctx, listKey, normalized)
		if err != nil {
			// A missing list will not appear between attempts.
			if errors.Is(err, ErrListNotFound) {
				return retry.Permanent(err)
			}
			return err
		}
		results = hits
		return nil
	}, retry.ExponentialConfig{
		InitialInterval: batchRetryInterval,
		MaxElapsedTime:  batchRetryMaxElapsed,
		OnRetry: func(err error, next time.Duration) {
			logger.Warn("Watchlist batch lookup failed, retrying", "list", listKey, "next", next, "err", err)
		},
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *HTTPStore) containsBatchOnce(ctx context.Context, listKey string, items []string) ([]bool, error) {
	body := map[string][]string{"items": items}
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/lists/%s/contains", url.PathEscape(listKey)), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrListNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("watchlist: batch contains failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Results []bool `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Results) != len(items) {
		return nil, fmt.Errorf("watchlist: expected %d results, got %d", len(items), len(payload.Results))
	}
	return payload.Results, nil
}

func (s *HTTPStore) CreateList(ctx context.Context, listKey string, initialItems []string) error {
	body := map[string]any{
		"key": listKey,
		"items": lo.Map(initialItems, func(item string, _ int) string {
			return NormalizeItem(item, listKey)
		}),
	}
	resp, err := s.do(ctx, http.MethodPost, "/lists", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("watchlist: create list failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAPIKey, s.apiKey)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	return s.client.Do(req)
}
