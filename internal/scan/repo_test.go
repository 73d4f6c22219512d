package scan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:scan_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Item{},
		&models.ItemHistoryEntry{},
		&models.ScanBatchRecord{},
		&models.DiscardRecord{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestRepositoryItemRoundTrip(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	missing, err := repo.FindItemBySerial(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	item := &models.Item{
		RFIDTagCode:  "tag-S1",
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageShippedOut,
		LastEventAt:  time.Now(),
	}
	require.NoError(t, repo.CreateItem(ctx, item))
	require.NotEqual(t, uuid.Nil, item.ID)

	found, err := repo.FindItemBySerial(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.StageShippedOut, found.Stage)

	found.Stage = enums.StageReceivedIn
	require.NoError(t, repo.SaveItem(ctx, found))

	reloaded, err := repo.FindItemBySerial(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, enums.StageReceivedIn, reloaded.Stage)
}

func TestRepositoryDiscardLedger(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.CreateDiscard(ctx, &models.DiscardRecord{
		CategoryCode: "CAT1",
		SerialCode:   "S1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		DiscardedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, err := repo.CreateDiscard(ctx, &models.DiscardRecord{
		CategoryCode: "CAT1",
		SerialCode:   "S1",
		SupplierCode: "SUP1",
		DiscardedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, again)

	has, err := repo.HasDiscard(ctx, "CAT1", "S1")
	require.NoError(t, err)
	assert.True(t, has)

	total, err := repo.CountDiscards(ctx, "CAT1", "SUP1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	clientTotal, err := repo.CountClientDiscards(ctx, "CAT1", "SUP1", "CL1")
	require.NoError(t, err)
	assert.Equal(t, 1, clientTotal)

	otherClient, err := repo.CountClientDiscards(ctx, "CAT1", "SUP1", "CL2")
	require.NoError(t, err)
	assert.Equal(t, 0, otherClient)
}

func TestRepositoryBatchQueries(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	older := &models.ScanBatchRecord{
		DeviceCode:   "DEV1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		Stage:        enums.StageShippedOut,
		EventCount:   3,
		LastEventAt:  time.Now().Add(-2 * time.Hour),
		CreatedAt:    time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, repo.CreateBatch(ctx, older))

	newer := &models.ScanBatchRecord{
		DeviceCode:   "DEV1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageReceivedIn,
		EventCount:   2,
		LastEventAt:  time.Now().Add(-time.Hour),
		CreatedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.CreateBatch(ctx, newer))

	latest, err := repo.LatestBatch(ctx, "CAT1", "SUP1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)

	group, err := repo.LatestGroupBatch(ctx, GroupKey{
		CategoryCode: "CAT1", SupplierCode: "SUP1", ClientCode: "", Stage: enums.StageShippedOut,
	})
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, older.ID, group.ID)

	stamp := time.Now()
	require.NoError(t, repo.UpdateBatchEventCount(ctx, older.ID, 5, stamp))
	corrected, err := repo.LatestGroupBatch(ctx, GroupKey{
		CategoryCode: "CAT1", SupplierCode: "SUP1", ClientCode: "", Stage: enums.StageShippedOut,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, corrected.EventCount)

	listed, err := repo.ListBatches(ctx, "CAT1", "SUP1", 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, newer.ID, listed[0].ID)
}

func TestRepositoryHistoryIdempotence(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	entry := func() *models.ItemHistoryEntry {
		return &models.ItemHistoryEntry{
			RFIDTagCode:  "tag-S1",
			SerialCode:   "S1",
			CategoryCode: "CAT1",
			SupplierCode: "SUP1",
			ClientCode:   strPtr("CL1"),
			Stage:        enums.StageReceivedIn,
			Cycle:        1,
			EventAt:      time.Now(),
		}
	}

	created, err := repo.CreateHistory(ctx, entry())
	require.NoError(t, err)
	assert.True(t, created)

	duplicate, err := repo.CreateHistory(ctx, entry())
	require.NoError(t, err)
	assert.False(t, duplicate)

	exists, err := repo.HistoryExists(ctx, HistoryKey{
		SerialCode: "S1", CategoryCode: "CAT1", SupplierCode: "SUP1",
		ClientCode: "CL1", Stage: enums.StageReceivedIn, Cycle: 1,
	})
	require.NoError(t, err)
	assert.True(t, exists)

	otherCycle, err := repo.HistoryExists(ctx, HistoryKey{
		SerialCode: "S1", CategoryCode: "CAT1", SupplierCode: "SUP1",
		ClientCode: "CL1", Stage: enums.StageReceivedIn, Cycle: 2,
	})
	require.NoError(t, err)
	assert.False(t, otherCycle)
}
