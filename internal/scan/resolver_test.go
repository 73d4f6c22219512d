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

func testEvent(serial string) Event {
	return Event{
		RFIDTagCode:     "tag-" + serial,
		DeviceFilterTag: "CIRCULAR-GATE-1",
		CategoryCode:    "CAT1",
		SerialCode:      serial,
	}
}

func TestResolverFirstSeenShippedOut(t *testing.T) {
	repo := newStubRepo()
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageShippedOut, "SUP1", strPtr("CL1"))
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionFirstSeen, result.Disposition)
	require.NotNil(t, result.Item)
	assert.Equal(t, enums.StageShippedOut, result.Item.Stage)
	assert.Equal(t, 0, result.Item.Cycle)
	require.NotNil(t, result.Item.ClientCode)
	assert.Equal(t, "CL1", *result.Item.ClientCode)
	assert.NotNil(t, repo.items["S1"])
}

func TestResolverFirstSeenNotAllowedForReceivedIn(t *testing.T) {
	repo := newStubRepo()
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageReceivedIn, "SUP1", strPtr("CL1"))
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionSkipped, result.Disposition)
	assert.Equal(t, enums.SkipReasonNoPredecessor, result.Reason)
	assert.Nil(t, repo.items["S1"])
}

func TestResolverTransitionShippedToReceived(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		Stage:        enums.StageShippedOut,
		LastEventAt:  time.Now().Add(-24 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageReceivedIn, "SUP1", strPtr("CL1"))
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionTransitioned, result.Disposition)
	assert.Equal(t, enums.StageReceivedIn, result.Item.Stage)
	require.NotNil(t, result.Item.ClientCode)
	assert.Equal(t, "CL1", *result.Item.ClientCode)
	assert.Equal(t, 0, result.Item.Cycle)
}

func TestResolverReturnedIncrementsCycleAndClearsClient(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageReceivedIn,
		Cycle:        2,
		LastEventAt:  time.Now().Add(-24 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageReturned, "SUP1", nil)
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionTransitioned, result.Disposition)
	assert.Equal(t, enums.StageReturned, result.Item.Stage)
	assert.Equal(t, 3, result.Item.Cycle)
	assert.Nil(t, result.Item.ClientCode)
}

func TestResolverReturnedRequiresClientAttribution(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		Stage:        enums.StageReceivedIn,
		LastEventAt:  time.Now().Add(-24 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageReturned, "SUP1", nil)
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionSkipped, result.Disposition)
	assert.Equal(t, enums.SkipReasonNoPredecessor, result.Reason)
}

func TestResolverReturnedRescanDoesNotRecreateItem(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		Stage:        enums.StageReturned,
		Cycle:        1,
		LastEventAt:  time.Now().Add(-1 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageReturned, "SUP1", nil)
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionReaffirmed, result.Disposition)
	assert.Equal(t, 1, result.Item.Cycle)
}

func TestResolverCleanedRequiresReturned(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageShippedOut,
		LastEventAt:  time.Now().Add(-24 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageCleaned, "SUP1", nil)
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionSkipped, result.Disposition)
	assert.Equal(t, enums.SkipReasonWrongState, result.Reason)
}

func TestResolverDiscardedItemIsTerminal(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		Stage:        enums.StageDiscarded,
		LastEventAt:  time.Now().Add(-24 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageShippedOut, "SUP1", nil)
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionSkipped, result.Disposition)
	assert.Equal(t, enums.SkipReasonDiscarded, result.Reason)
}

func TestResolverSameStageOutsideWindowIsStale(t *testing.T) {
	repo := newStubRepo()
	repo.items["S1"] = &models.Item{
		SerialCode:   "S1",
		CategoryCode: "CAT1",
		SupplierCode: "SUP1",
		ClientCode:   strPtr("CL1"),
		Stage:        enums.StageShippedOut,
		LastEventAt:  time.Now().Add(-13 * time.Hour),
	}
	resolver := NewResolver(repo, 12*time.Hour)

	result, err := resolver.Resolve(context.Background(), testEvent("S1"), enums.StageShippedOut, "SUP1", strPtr("CL1"))
	require.NoError(t, err)

	assert.Equal(t, enums.DispositionSkipped, result.Disposition)
	assert.Equal(t, enums.SkipReasonStaleDuplicate, result.Reason)
}
