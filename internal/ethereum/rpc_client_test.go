package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// rpcServer is a canned JSON-RPC server. Handlers are keyed by method.
func rpcServer(t *testing.T, handlers map[string]func(params []json.RawMessage) (interface{}, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			return
		}

		result, err := handler(req.Params)
		if err != nil {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32000,"message":%q}}`, req.ID, err.Error())
			return
		}
		payload, _ := json.Marshal(result)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, payload)
	}))
}

func TestHTTPClient_BlockByNumber(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getBlockByNumber": func(params []json.RawMessage) (interface{}, error) {
			var tag string
			json.Unmarshal(params[0], &tag)
			if tag != "0x112a880" {
				t.Errorf("block tag = %s, want 0x112a880", tag)
			}
			return map[string]string{
				"number":    "0x112a880",
				"timestamp": "0x6553f100",
				"hash":      "0xabc0000000000000000000000000000000000000000000000000000000000001",
			}, nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	block, err := c.BlockByNumber(context.Background(), 18000000)
	if err != nil {
		t.Fatalf("BlockByNumber failed: %v", err)
	}
	if block.Number != 18000000 {
		t.Errorf("Number = %d, want 18000000", block.Number)
	}
	if block.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", block.Timestamp)
	}
}

func TestHTTPClient_BlockByNumber_Latest(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getBlockByNumber": func(params []json.RawMessage) (interface{}, error) {
			var tag string
			json.Unmarshal(params[0], &tag)
			if tag != "latest" {
				t.Errorf("block tag = %s, want latest", tag)
			}
			return map[string]string{
				"number":    "0x112a885",
				"timestamp": "0x6553f13c",
				"hash":      "0xabc0000000000000000000000000000000000000000000000000000000000003",
			}, nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	block, err := c.BlockByNumber(context.Background(), LatestBlock)
	if err != nil {
		t.Fatalf("BlockByNumber failed: %v", err)
	}
	if block.Number != 18000005 {
		t.Errorf("Number = %d, want 18000005", block.Number)
	}
}

func TestHTTPClient_BlockNotFound(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getBlockByNumber": func([]json.RawMessage) (interface{}, error) {
			return nil, nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	if _, err := c.BlockByNumber(context.Background(), 99999999); err == nil {
		t.Error("BlockByNumber succeeded for a null block")
	}
}

func TestHTTPClient_TransactionReceipt(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, error) {
			return map[string]string{
				"transactionHash":   "0xabc0000000000000000000000000000000000000000000000000000000000002",
				"from":              "0xcccc000000000000000000000000000000000000",
				"gasUsed":           "0x1d4c0",
				"effectiveGasPrice": "0x6fc23ac00",
				"status":            "0x1",
				"blockNumber":       "0x112a880",
			}, nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	receipt, err := c.TransactionReceipt(context.Background(), common.HexToHash("0x02"))
	if err != nil {
		t.Fatalf("TransactionReceipt failed: %v", err)
	}
	if receipt.From != common.HexToAddress("0xcccc000000000000000000000000000000000000") {
		t.Errorf("From = %s", receipt.From.Hex())
	}
	if receipt.GasUsed != 120000 {
		t.Errorf("GasUsed = %d, want 120000", receipt.GasUsed)
	}
	wantCost := new(big.Int).Mul(big.NewInt(120000), big.NewInt(30_000_000_000))
	if receipt.GasCost().Cmp(wantCost) != 0 {
		t.Errorf("GasCost = %s, want %s", receipt.GasCost(), wantCost)
	}
}

func TestHTTPClient_UnknownReceiptIsNilNil(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, error) {
			return nil, nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	receipt, err := c.TransactionReceipt(context.Background(), common.HexToHash("0x02"))
	if err != nil {
		t.Fatalf("TransactionReceipt failed: %v", err)
	}
	if receipt != nil {
		t.Errorf("receipt = %+v, want nil for an unknown tx", receipt)
	}
}

func TestHTTPClient_CallContract(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_call": func(params []json.RawMessage) (interface{}, error) {
			var msg map[string]string
			json.Unmarshal(params[0], &msg)
			if msg["data"] != "0x3850c7bd" {
				t.Errorf("calldata = %s, want 0x3850c7bd", msg["data"])
			}
			return "0x00000000000000000000000000000000000000000000000000000000000000ff", nil
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	out, err := c.CallContract(context.Background(), common.HexToAddress("0x01"), []byte{0x38, 0x50, 0xc7, 0xbd})
	if err != nil {
		t.Fatalf("CallContract failed: %v", err)
	}
	if len(out) != 32 || out[31] != 0xff {
		t.Errorf("out = %x, want 32 bytes ending in ff", out)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_call": func([]json.RawMessage) (interface{}, error) {
			hits.Add(1)
			return nil, fmt.Errorf("execution reverted")
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryPolicy(RetryPolicy{Attempts: 3, Delay: time.Millisecond}))
	_, err := c.CallContract(context.Background(), common.HexToAddress("0x01"), nil)
	if err == nil {
		t.Fatal("CallContract succeeded on a reverting call")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (answered errors are final)", hits.Load())
	}
}

func TestHTTPClient_RetriesTransportFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryPolicy(RetryPolicy{Attempts: 2, Delay: time.Millisecond}))
	if _, err := c.CallContract(context.Background(), common.HexToAddress("0x01"), nil); err != nil {
		t.Fatalf("CallContract failed after retry: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestHTTPClient_CallObserver(t *testing.T) {
	srv := rpcServer(t, map[string]func([]json.RawMessage) (interface{}, error){
		"eth_getCode": func([]json.RawMessage) (interface{}, error) {
			return "0x60806040", nil
		},
	})
	defer srv.Close()

	var observed string
	c := NewHTTPClient(srv.URL, WithCallObserver(func(method string, elapsed time.Duration) {
		observed = method
		if elapsed < 0 {
			t.Errorf("elapsed = %v", elapsed)
		}
	}))

	code, err := c.CodeAt(context.Background(), common.HexToAddress("0x01"))
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if len(code) != 4 {
		t.Errorf("code = %x, want 4 bytes", code)
	}
	if observed != "eth_getCode" {
		t.Errorf("observed method = %q, want eth_getCode", observed)
	}
}
