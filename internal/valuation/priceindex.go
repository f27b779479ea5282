package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/ethereum"
)

// IndexClient queries the external price-index HTTP service. It is the last
// valuation fallback after the on-chain quoter.
type IndexClient struct {
	baseURL string
	client  *http.Client
	retry   ethereum.RetryPolicy
}

// IndexOption configures IndexClient.
type IndexOption func(*IndexClient)

// WithIndexHTTPClient sets a custom http.Client.
func WithIndexHTTPClient(client *http.Client) IndexOption {
	return func(c *IndexClient) {
		c.client = client
	}
}

// WithIndexRetryPolicy overrides the default retry policy.
func WithIndexRetryPolicy(p ethereum.RetryPolicy) IndexOption {
	return func(c *IndexClient) {
		c.retry = p
	}
}

// NewIndexClient creates a price-index client.
func NewIndexClient(baseURL string, opts ...IndexOption) *IndexClient {
	c := &IndexClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   ethereum.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// indexResponse is the price-index service reply.
type indexResponse struct {
	USD float64 `json:"usd"`
}

// PriceBySymbol resolves a USD unit price by token symbol.
func (c *IndexClient) PriceBySymbol(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	return c.fetch(ctx, q)
}

// PriceByContract resolves a USD unit price by (chain, contract address).
func (c *IndexClient) PriceByContract(ctx context.Context, chain string, contract common.Address) (float64, error) {
	q := url.Values{}
	q.Set("chain", chain)
	q.Set("contract", contract.Hex())
	return c.fetch(ctx, q)
}

// fetch performs the GET under the retry policy.
func (c *IndexClient) fetch(ctx context.Context, query url.Values) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/price?%s", c.baseURL, query.Encode())

	var price float64
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var r indexResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if r.USD <= 0 {
			return fmt.Errorf("index returned non-positive price")
		}

		price = r.USD
		return nil
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}
