package clickhouse

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// EventMetricStore implements storage.EventMetricStore using ClickHouse.
// The metrics table is analytics-shaped and append-only; the MergeTree
// engine does not enforce uniqueness and the collector does not need it.
type EventMetricStore struct {
	conn *Conn
}

// NewEventMetricStore creates a new EventMetricStore.
func NewEventMetricStore(conn *Conn) *EventMetricStore {
	return &EventMetricStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventMetricStore = (*EventMetricStore)(nil)

// InsertBatch appends a batch of metrics.
func (s *EventMetricStore) InsertBatch(ctx context.Context, metrics []*domain.EventMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO event_metrics (
			tx_hash, log_index, kind, event_timestamp,
			processing_start, processing_end, storage_start, storage_end,
			success, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range metrics {
		var success uint8
		if m.Success {
			success = 1
		}
		err = batch.Append(
			m.TxHash, uint32(m.LogIndex), string(m.Kind), m.EventTimestamp,
			m.ProcessingStart, m.ProcessingEnd, m.StorageStart, m.StorageEnd,
			success, m.Error,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
