package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// IntegrityStore implements storage.IntegrityStore using PostgreSQL.
// The table is an append-only audit log.
type IntegrityStore struct {
	pool *Pool
}

// NewIntegrityStore creates a new IntegrityStore.
func NewIntegrityStore(pool *Pool) *IntegrityStore {
	return &IntegrityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IntegrityStore = (*IntegrityStore)(nil)

// Insert appends one check result.
func (s *IntegrityStore) Insert(ctx context.Context, r *domain.IntegrityCheckResult) error {
	issues := r.Issues
	if issues == nil {
		issues = []domain.IntegrityIssue{}
	}
	payload, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal integrity issues: %w", err)
	}

	query := `
		INSERT INTO integrity_check_results (check_type, run_at, passed, issues, details)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query, r.CheckType, r.RunAt, r.Passed, payload, r.Details)
	if err != nil {
		return fmt.Errorf("insert integrity check result: %w", err)
	}
	return nil
}
