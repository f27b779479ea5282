package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniswap-pool-indexer/internal/domain"
	pgstore "uniswap-pool-indexer/internal/storage/postgres"
)

func TestIntegrityStore_InsertWithIssues(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewIntegrityStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.IntegrityCheckResult{
		CheckType: "block_gaps",
		RunAt:     1700000000,
		Passed:    false,
		Issues: []domain.IntegrityIssue{
			{Severity: domain.SeverityWarning, Message: "gap between blocks 18000000 and 18000010", AffectedCount: 9},
		},
		Details: "checked 5000 blocks",
	}))

	var (
		passed  bool
		details string
		raw     []byte
	)
	err := pool.QueryRow(ctx, `
		SELECT passed, details, issues
		FROM integrity_check_results
		WHERE check_type = $1 AND run_at = $2
	`, "block_gaps", int64(1700000000)).Scan(&passed, &details, &raw)
	require.NoError(t, err)

	assert.False(t, passed)
	assert.Equal(t, "checked 5000 blocks", details)

	var issues []domain.IntegrityIssue
	require.NoError(t, json.Unmarshal(raw, &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, domain.SeverityWarning, issues[0].Severity)
	assert.Equal(t, int64(9), issues[0].AffectedCount)
}

func TestIntegrityStore_NilIssuesStoredAsEmptyArray(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := pgstore.NewIntegrityStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.IntegrityCheckResult{
		CheckType: "duplicate_keys",
		RunAt:     1700000100,
		Passed:    true,
	}))

	var raw []byte
	err := pool.QueryRow(ctx, `
		SELECT issues FROM integrity_check_results
		WHERE check_type = $1 AND run_at = $2
	`, "duplicate_keys", int64(1700000100)).Scan(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}
