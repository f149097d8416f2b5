package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func TestBackupManager_CreateListDelete(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.SaveTransactions(ctx, []model.Transaction{
		testTransaction(propertyID, "t1", day(2021, time.January, 1), "500", "Apport"),
	})
	require.NoError(t, err)

	bm, err := store.NewBackupManager()
	require.NoError(t, err)

	info, err := bm.Create(ctx, "before-import", "manual")
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Equal(t, 1, info.RowCounts["transactions"])
	assert.Equal(t, 1, info.RowCounts["properties"])
	assert.False(t, info.IsAuto)
	assert.Positive(t, info.FileSize)

	_, err = bm.Create(ctx, "before-import", "again")
	assert.ErrorIs(t, err, ErrBackupExists)

	_, err = bm.Create(ctx, "../escape", "")
	assert.ErrorIs(t, err, ErrInvalidBackupID)

	auto, err := bm.Auto(ctx, "reset")
	require.NoError(t, err)
	assert.True(t, auto.IsAuto)

	backups, err := bm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, backups, 2)

	require.NoError(t, bm.Delete(ctx, "before-import"))
	assert.ErrorIs(t, bm.Delete(ctx, "before-import"), ErrBackupNotFound)

	backups, err = bm.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, auto.ID, backups[0].ID)
}

func TestBackupManager_Restore(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.SaveTransactions(ctx, []model.Transaction{
		testTransaction(propertyID, "t1", day(2021, time.January, 1), "500", "Apport"),
	})
	require.NoError(t, err)

	bm, err := store.NewBackupManager()
	require.NoError(t, err)
	_, err = bm.Create(ctx, "snapshot", "")
	require.NoError(t, err)

	_, err = store.SaveTransactions(ctx, []model.Transaction{
		testTransaction(propertyID, "t2", day(2021, time.February, 1), "1000", "Loyer"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, bm.Restore(ctx, "missing"), ErrBackupNotFound)
	require.NoError(t, bm.Restore(ctx, "snapshot"))

	reopened, err := NewSQLiteStorage(store.Path())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	txns, err := reopened.ListTransactions(ctx, propertyID, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "t1", txns[0].ID)
}
