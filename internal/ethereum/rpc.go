package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LatestBlock selects the node's current head when passed to BlockByNumber.
const LatestBlock int64 = -1

// RPCClient defines the Ethereum JSON-RPC read interface the pipeline needs.
type RPCClient interface {
	// BlockByNumber retrieves block header fields for the given height.
	// Pass LatestBlock for the current head.
	BlockByNumber(ctx context.Context, number int64) (*Block, error)

	// TransactionReceipt retrieves the receipt for a transaction hash.
	// Returns nil, nil when the transaction is unknown to the node.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// CallContract performs a read-only eth_call against the latest block.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// CodeAt returns the deployed bytecode at the address.
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

// Block holds the header fields the pipeline consumes.
type Block struct {
	Number    int64
	Timestamp int64 // Unix seconds
	Hash      common.Hash
}

// Receipt holds the transaction receipt fields the pipeline consumes.
type Receipt struct {
	TxHash common.Hash
	// From is the externally-owned account that signed the transaction.
	From              common.Address
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Status            uint64
	BlockNumber       int64
}

// GasCost returns gasUsed * effectiveGasPrice in wei.
func (r *Receipt) GasCost() *big.Int {
	if r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}
