package ethereum

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// WSClient defines the Ethereum WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to contract logs matching the filter and
	// returns the node-assigned subscription ID with the delivery channel.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (string, <-chan Log, error)

	// UnsubscribeLogs cancels a subscription and closes its channel.
	UnsubscribeLogs(ctx context.Context, subID string) error

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// LogsFilter restricts a logs subscription to contract addresses.
type LogsFilter struct {
	Addresses []common.Address
}

// Log is a raw eth_subscription log item. Fields keep their wire encoding
// (hex strings) so downstream validation can tell a missing field from a
// zero value.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}
