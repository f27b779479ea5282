package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HTTPClient implements RPCClient over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	retry     RetryPolicy
	observe   func(method string, elapsed time.Duration)
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *HTTPClient) {
		c.retry = p
	}
}

// WithCallObserver registers a callback invoked after every RPC call with
// the method name and wall-clock duration, retries included.
func WithCallObserver(fn func(method string, elapsed time.Duration)) ClientOption {
	return func(c *HTTPClient) {
		c.observe = fn
	}
}

// NewHTTPClient creates a new Ethereum JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call under the client's retry policy.
// RPC-level errors (the node answered) are not retried.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(method, time.Since(start)) }()
	}

	var rpcErr *rpcError
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited (429)")
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}

		if rpcResp.Error != nil {
			// The node answered; retrying will not change the result.
			rpcErr = rpcResp.Error
			return nil
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}
	if rpcErr != nil {
		return rpcErr
	}
	return nil
}

// blockResult is the raw eth_getBlockByNumber response.
type blockResult struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
	Hash      string `json:"hash"`
}

// BlockByNumber retrieves block header fields for the given height, or the
// current head when number is LatestBlock.
func (c *HTTPClient) BlockByNumber(ctx context.Context, number int64) (*Block, error) {
	var result *blockResult
	tag := "latest"
	if number >= 0 {
		tag = hexutil.EncodeUint64(uint64(number))
	}
	if err := c.call(ctx, "eth_getBlockByNumber", []interface{}{tag, false}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("block %d not found", number)
	}

	num, err := hexutil.DecodeUint64(result.Number)
	if err != nil {
		return nil, fmt.Errorf("decode block number: %w", err)
	}
	ts, err := hexutil.DecodeUint64(result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode block timestamp: %w", err)
	}

	return &Block{
		Number:    int64(num),
		Timestamp: int64(ts),
		Hash:      common.HexToHash(result.Hash),
	}, nil
}

// receiptResult is the raw eth_getTransactionReceipt response.
type receiptResult struct {
	TransactionHash   string `json:"transactionHash"`
	From              string `json:"from"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	Status            string `json:"status"`
	BlockNumber       string `json:"blockNumber"`
}

// TransactionReceipt retrieves the receipt for the given transaction hash.
// Returns nil, nil when the node does not know the transaction.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var result *receiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.Hex()}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	gasUsed, err := hexutil.DecodeUint64(result.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("decode gasUsed: %w", err)
	}
	status, err := hexutil.DecodeUint64(result.Status)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	blockNum, err := hexutil.DecodeUint64(result.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("decode blockNumber: %w", err)
	}

	r := &Receipt{
		TxHash:      common.HexToHash(result.TransactionHash),
		From:        common.HexToAddress(result.From),
		GasUsed:     gasUsed,
		Status:      status,
		BlockNumber: int64(blockNum),
	}
	if result.EffectiveGasPrice != "" {
		price, err := hexutil.DecodeBig(result.EffectiveGasPrice)
		if err != nil {
			return nil, fmt.Errorf("decode effectiveGasPrice: %w", err)
		}
		r.EffectiveGasPrice = price
	}

	return r, nil
}

// CallContract performs a read-only eth_call against the latest block.
func (c *HTTPClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]string{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}

	var result string
	if err := c.call(ctx, "eth_call", []interface{}{msg, "latest"}, &result); err != nil {
		return nil, err
	}

	out, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return out, nil
}

// CodeAt returns the deployed bytecode at the address.
func (c *HTTPClient) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_getCode", []interface{}{addr.Hex(), "latest"}, &result); err != nil {
		return nil, err
	}

	code, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	return code, nil
}
