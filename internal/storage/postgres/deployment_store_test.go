package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

func TestDeploymentStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	d := &domain.Deployment{
		LedgerID:      "ledger-001",
		Creator:       "CreatorAddr111",
		Name:          "Test Token",
		Symbol:        "TST",
		Decimals:      6,
		MaxSupply:     1000000,
		MintAuthority: ptr("AuthAddr111"),
		CreatedAt:     1704067200000,
	}

	// Insert
	err := store.Insert(ctx, d)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "ledger-001")
	require.NoError(t, err)

	assert.Equal(t, d.LedgerID, retrieved.LedgerID)
	assert.Equal(t, d.Creator, retrieved.Creator)
	assert.Equal(t, d.Name, retrieved.Name)
	assert.Equal(t, d.Symbol, retrieved.Symbol)
	assert.Equal(t, d.Decimals, retrieved.Decimals)
	assert.Equal(t, d.MaxSupply, retrieved.MaxSupply)
	assert.Equal(t, *d.MintAuthority, *retrieved.MintAuthority)
	assert.Equal(t, d.CreatedAt, retrieved.CreatedAt)
}

func TestDeploymentStore_NilAuthority(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	d := &domain.Deployment{
		LedgerID:  "ledger-open",
		Creator:   "CreatorAddr111",
		Name:      "Open Token",
		Symbol:    "OPN",
		CreatedAt: 1704067200000,
	}

	require.NoError(t, store.Insert(ctx, d))

	retrieved, err := store.GetByID(ctx, "ledger-open")
	require.NoError(t, err)
	assert.Nil(t, retrieved.MintAuthority)
}

func TestDeploymentStore_MaxSupplyFullRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	// The full uint64 range must survive the NUMERIC round trip
	d := &domain.Deployment{
		LedgerID:  "ledger-max",
		Creator:   "CreatorAddr111",
		Name:      "Max Token",
		Symbol:    "MAX",
		MaxSupply: math.MaxUint64,
		CreatedAt: 1704067200000,
	}

	require.NoError(t, store.Insert(ctx, d))

	retrieved, err := store.GetByID(ctx, "ledger-max")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), retrieved.MaxSupply)
}

func TestDeploymentStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	d := &domain.Deployment{
		LedgerID:  "ledger-dup",
		Creator:   "CreatorAddr111",
		Name:      "Dup Token",
		Symbol:    "DUP",
		CreatedAt: 1704067200000,
	}

	require.NoError(t, store.Insert(ctx, d))

	err := store.Insert(ctx, d)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDeploymentStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeploymentStore_GetByCreator(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	deployments := []*domain.Deployment{
		{LedgerID: "l1", Creator: "alice", Name: "A", Symbol: "A", CreatedAt: 1000},
		{LedgerID: "l2", Creator: "bob", Name: "B", Symbol: "B", CreatedAt: 2000},
		{LedgerID: "l3", Creator: "alice", Name: "C", Symbol: "C", CreatedAt: 3000},
	}
	for _, d := range deployments {
		require.NoError(t, store.Insert(ctx, d))
	}

	result, err := store.GetByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "l1", result[0].LedgerID)
	assert.Equal(t, "l3", result[1].LedgerID)

	result, err = store.GetByCreator(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestDeploymentStore_GetAllAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeploymentStore(pool)
	ctx := context.Background()

	for i, id := range []string{"l1", "l2", "l3"} {
		d := &domain.Deployment{LedgerID: id, Creator: "c", Name: "N", Symbol: "S", CreatedAt: int64(1000 * (i + 1))}
		require.NoError(t, store.Insert(ctx, d))
	}

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l1", all[0].LedgerID)
	assert.Equal(t, "l3", all[2].LedgerID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
