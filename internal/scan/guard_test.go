package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
)

func countedResult(serial string, cycle int) ItemResult {
	return ItemResult{
		Event:       Event{CategoryCode: "CAT1", SerialCode: serial},
		Item:        &models.Item{SerialCode: serial, CategoryCode: "CAT1", Cycle: cycle},
		Disposition: enums.DispositionTransitioned,
	}
}

func seedHistory(repo *stubRepo, key GroupKey, serial string, cycle int) {
	repo.histories[HistoryKey{
		SerialCode:   serial,
		CategoryCode: key.CategoryCode,
		SupplierCode: key.SupplierCode,
		ClientCode:   key.ClientCode,
		Stage:        key.Stage,
		Cycle:        cycle,
	}] = &models.ItemHistoryEntry{SerialCode: serial}
}

func TestGuardProceedsWhenAnyItemIsNew(t *testing.T) {
	repo := newStubRepo()
	key := groupKey(enums.StageReceivedIn, "CL1")
	seedHistory(repo, key, "S1", 0)

	guard, err := NewGuard(repo, 12*time.Hour, nil)
	require.NoError(t, err)

	decision, err := guard.Check(context.Background(), nil, key, []ItemResult{
		countedResult("S1", 0),
		countedResult("S2", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, GuardProceed, decision.Action)
}

func TestGuardCorrectsInsideWindow(t *testing.T) {
	repo := newStubRepo()
	key := groupKey(enums.StageReceivedIn, "CL1")
	seedHistory(repo, key, "S1", 0)
	seedHistory(repo, key, "S2", 0)
	repo.batches = append(repo.batches, &models.ScanBatchRecord{
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageReceivedIn,
		EventCount:   2,
		CreatedAt:    time.Now().Add(-time.Hour),
	})

	guard, err := NewGuard(repo, 12*time.Hour, nil)
	require.NoError(t, err)

	decision, err := guard.Check(context.Background(), nil, key, []ItemResult{
		countedResult("S1", 0),
		countedResult("S2", 0),
	})
	require.NoError(t, err)
	require.Equal(t, GuardCorrect, decision.Action)
	require.NotNil(t, decision.Prior)

	stamp := time.Now()
	require.NoError(t, guard.Correct(context.Background(), nil, decision.Prior, 3, stamp))
	assert.Equal(t, 3, repo.batches[0].EventCount)
	assert.Equal(t, stamp, repo.batches[0].LastEventAt)
}

func TestGuardDropsOutsideWindow(t *testing.T) {
	repo := newStubRepo()
	key := groupKey(enums.StageReceivedIn, "CL1")
	seedHistory(repo, key, "S1", 0)
	repo.batches = append(repo.batches, &models.ScanBatchRecord{
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageReceivedIn,
		CreatedAt:    time.Now().Add(-13 * time.Hour),
	})

	guard, err := NewGuard(repo, 12*time.Hour, nil)
	require.NoError(t, err)

	decision, err := guard.Check(context.Background(), nil, key, []ItemResult{countedResult("S1", 0)})
	require.NoError(t, err)
	assert.Equal(t, GuardDrop, decision.Action)
}

func TestGuardProceedsWithNoCountedItems(t *testing.T) {
	guard, err := NewGuard(newStubRepo(), 12*time.Hour, nil)
	require.NoError(t, err)

	decision, err := guard.Check(context.Background(), nil, groupKey(enums.StageReceivedIn, "CL1"), []ItemResult{
		{Event: Event{SerialCode: "S1"}, Disposition: enums.DispositionSkipped, Reason: enums.SkipReasonWrongState},
	})
	require.NoError(t, err)
	assert.Equal(t, GuardProceed, decision.Action)
}
