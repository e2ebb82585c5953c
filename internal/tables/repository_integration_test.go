//go:build integration

package tables_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/constants"
	"tableflow/internal/tables"
	"tableflow/internal/testinfra"
)

func TestMongoStore(t *testing.T) {
	infra := testinfra.Setup(t, testinfra.Needs{Mongo: true})
	ctx := context.Background()
	store := tables.NewStore(infra.MongoDB)

	_, err := infra.MongoDB.Collection(constants.CollectionTables).InsertMany(ctx, []interface{}{
		tables.Table{ID: "t5", TenantID: "tenant-a", Number: "5", Type: "regular", Status: "available", Capacity: 4},
		tables.Table{ID: "t6", TenantID: "tenant-b", Number: "5", Type: "booth", Status: "available", Capacity: 2},
	})
	require.NoError(t, err)

	t.Run("find is tenant scoped", func(t *testing.T) {
		table, err := store.FindByTenantAndNumber(ctx, "tenant-b", "5")
		require.NoError(t, err)
		require.NotNil(t, table)
		assert.Equal(t, "booth", table.Type)

		missing, err := store.FindByTenantAndNumber(ctx, "tenant-a", "99")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("save bumps version and rejects stale writes", func(t *testing.T) {
		first, err := store.FindByTenantAndNumber(ctx, "tenant-a", "5")
		require.NoError(t, err)
		stale := first.Clone()

		first.ApplyStatus(constants.TableStatusOccupied, "order placed", time.Now().UTC())
		require.NoError(t, store.Save(ctx, first))
		assert.Equal(t, int64(1), first.Version)

		stale.ApplyStatus(constants.TableStatusCleaning, "late writer", time.Now().UTC())
		assert.ErrorIs(t, store.Save(ctx, stale), tables.ErrVersionConflict)

		reloaded, err := store.FindByTenantAndNumber(ctx, "tenant-a", "5")
		require.NoError(t, err)
		assert.Equal(t, constants.TableStatusOccupied, reloaded.Status)
		assert.NotNil(t, reloaded.SessionStartTime)
	})

	t.Run("occupied with session", func(t *testing.T) {
		occupied, err := store.FindOccupiedWithSession(ctx)
		require.NoError(t, err)
		require.Len(t, occupied, 1)
		assert.Equal(t, "tenant-a", occupied[0].TenantID)
	})
}

func TestMongoActivityStore(t *testing.T) {
	infra := testinfra.Setup(t, testinfra.Needs{Mongo: true})
	ctx := context.Background()
	activity := tables.NewActivityStore(infra.MongoDB)

	base := time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, activity.CreateAlert(ctx, &tables.Alert{
			TenantID: "tenant-a", TableNumber: "5", RuleID: "r1", Level: "warning",
			Message: msg, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, activity.CreateWaiterAssignment(ctx, &tables.WaiterAssignment{
		TenantID: "tenant-a", TableNumber: "5", RuleID: "r2",
	}))

	alerts, err := activity.ListAlerts(ctx, "tenant-a", "5", 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "third", alerts[0].Message)
	assert.Equal(t, "second", alerts[1].Message)

	none, err := activity.ListAlerts(ctx, "tenant-b", "5", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
