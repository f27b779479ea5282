package ingestion

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
)

// Uniswap V3 pool event signatures (topic 0).
var (
	// Swap(address indexed sender, address indexed recipient, int256 amount0,
	// int256 amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
	TopicSwap = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

	// Mint(address sender, address indexed owner, int24 indexed tickLower,
	// int24 indexed tickUpper, uint128 amount, uint256 amount0, uint256 amount1)
	TopicMint = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")

	// Burn(address indexed owner, int24 indexed tickLower, int24 indexed
	// tickUpper, uint128 amount, uint256 amount0, uint256 amount1)
	TopicBurn = common.HexToHash("0x0c396cd989a39f4459b5fa1aed6a9a8dcdbc45908acfd67e028cd568da98982c")

	// Collect(address indexed owner, address recipient, int24 indexed
	// tickLower, int24 indexed tickUpper, uint128 amount0, uint128 amount1)
	TopicCollect = common.HexToHash("0x70935338e69775456a85ddef226c395fb668b63fa0115f5f20610b388e6ca9c0")
)

// ErrUnknownTopic is returned for logs whose topic 0 is not a pool event we
// track. Callers skip these silently.
var ErrUnknownTopic = fmt.Errorf("unknown event topic")

const wordSize = 32

// DecodeLog converts a raw subscription log into a domain.RawEvent.
// Logs missing the tx hash, block number, or log index are rejected; the
// listener drops them with a warning and never retries.
func DecodeLog(l ethereum.Log) (*domain.RawEvent, error) {
	if l.Removed {
		return nil, fmt.Errorf("log removed by reorg")
	}
	if l.TransactionHash == "" {
		return nil, fmt.Errorf("log missing transaction hash")
	}
	if l.BlockNumber == "" {
		return nil, fmt.Errorf("log missing block number")
	}
	if l.LogIndex == "" {
		return nil, fmt.Errorf("log missing log index")
	}
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	blockNumber, err := hexutil.DecodeUint64(l.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("decode block number %q: %w", l.BlockNumber, err)
	}
	logIndex, err := hexutil.DecodeUint64(l.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("decode log index %q: %w", l.LogIndex, err)
	}
	data, err := hexutil.Decode(l.Data)
	if err != nil {
		return nil, fmt.Errorf("decode log data: %w", err)
	}

	ev := &domain.RawEvent{
		Pool:        common.HexToAddress(l.Address),
		TxHash:      common.HexToHash(l.TransactionHash),
		LogIndex:    uint(logIndex),
		BlockNumber: int64(blockNumber),
	}

	switch common.HexToHash(l.Topics[0]) {
	case TopicSwap:
		err = decodeSwap(ev, l.Topics, data)
	case TopicMint:
		err = decodeMint(ev, l.Topics, data)
	case TopicBurn:
		err = decodeBurn(ev, l.Topics, data)
	case TopicCollect:
		err = decodeCollect(ev, l.Topics, data)
	default:
		return nil, ErrUnknownTopic
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeSwap(ev *domain.RawEvent, topics []string, data []byte) error {
	if len(topics) < 3 {
		return fmt.Errorf("swap log has %d topics, want 3", len(topics))
	}
	if len(data) < 5*wordSize {
		return fmt.Errorf("swap log data is %d bytes, want %d", len(data), 5*wordSize)
	}
	ev.Kind = domain.EventSwap
	ev.Sender = topicAddress(topics[1])
	ev.Recipient = topicAddress(topics[2])
	ev.Amount0 = decodeInt256(word(data, 0))
	ev.Amount1 = decodeInt256(word(data, 1))
	ev.SqrtPriceX96 = new(big.Int).SetBytes(word(data, 2))
	ev.Liquidity = new(big.Int).SetBytes(word(data, 3))
	ev.Tick = decodeInt24(word(data, 4))
	return nil
}

func decodeMint(ev *domain.RawEvent, topics []string, data []byte) error {
	if len(topics) < 4 {
		return fmt.Errorf("mint log has %d topics, want 4", len(topics))
	}
	if len(data) < 4*wordSize {
		return fmt.Errorf("mint log data is %d bytes, want %d", len(data), 4*wordSize)
	}
	ev.Kind = domain.EventMint
	ev.Sender = topicAddress(topics[1]) // position owner
	ev.TickLower = topicInt24(topics[2])
	ev.TickUpper = topicInt24(topics[3])
	ev.Liquidity = new(big.Int).SetBytes(word(data, 1))
	ev.Amount0 = new(big.Int).SetBytes(word(data, 2))
	ev.Amount1 = new(big.Int).SetBytes(word(data, 3))
	return nil
}

func decodeBurn(ev *domain.RawEvent, topics []string, data []byte) error {
	if len(topics) < 4 {
		return fmt.Errorf("burn log has %d topics, want 4", len(topics))
	}
	if len(data) < 3*wordSize {
		return fmt.Errorf("burn log data is %d bytes, want %d", len(data), 3*wordSize)
	}
	ev.Kind = domain.EventBurn
	ev.Sender = topicAddress(topics[1])
	ev.TickLower = topicInt24(topics[2])
	ev.TickUpper = topicInt24(topics[3])
	ev.Liquidity = new(big.Int).SetBytes(word(data, 0))
	ev.Amount0 = new(big.Int).SetBytes(word(data, 1))
	ev.Amount1 = new(big.Int).SetBytes(word(data, 2))
	return nil
}

func decodeCollect(ev *domain.RawEvent, topics []string, data []byte) error {
	if len(topics) < 4 {
		return fmt.Errorf("collect log has %d topics, want 4", len(topics))
	}
	if len(data) < 3*wordSize {
		return fmt.Errorf("collect log data is %d bytes, want %d", len(data), 3*wordSize)
	}
	ev.Kind = domain.EventCollect
	ev.Sender = topicAddress(topics[1])
	ev.TickLower = topicInt24(topics[2])
	ev.TickUpper = topicInt24(topics[3])
	ev.Recipient = common.BytesToAddress(word(data, 0))
	ev.Amount0 = new(big.Int).SetBytes(word(data, 1))
	ev.Amount1 = new(big.Int).SetBytes(word(data, 2))
	return nil
}

func word(data []byte, i int) []byte {
	return data[i*wordSize : (i+1)*wordSize]
}

// topicAddress extracts an address from a 32-byte indexed topic.
func topicAddress(topic string) common.Address {
	return common.BytesToAddress(common.HexToHash(topic).Bytes())
}

// topicInt24 extracts a signed 24-bit tick from an indexed topic.
func topicInt24(topic string) int32 {
	return decodeInt24(common.HexToHash(topic).Bytes())
}

// decodeInt256 interprets a 32-byte word as a two's complement integer.
func decodeInt256(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		twoPow := new(big.Int).Lsh(big.NewInt(1), uint(8*len(b)))
		v.Sub(v, twoPow)
	}
	return v
}

// decodeInt24 reads an ABI-encoded int24 sign-extended into a 32-byte word.
func decodeInt24(b []byte) int32 {
	v := decodeInt256(b)
	return int32(v.Int64())
}
