package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/errors"
)

func TestPlanWorkItems(t *testing.T) {
	now := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)

	t.Run("fixed collections plus daily buckets", func(t *testing.T) {
		settings := testSettings(2, "organization", "project")
		backend := newMockBackend()

		items, err := PlanWorkItems(&settings, "faultline", backend, now)
		require.NoError(t, err)
		require.Len(t, items, 5, "2 fixed + 3 daily buckets for day 0, 1, 2")

		// Fixed collections come first and carry no date filter
		assert.Equal(t, "faultline-main", items[0].SourceIndex)
		assert.Equal(t, "organization", items[0].SourceType)
		assert.Equal(t, "faultline-v2-organization", items[0].TargetIndex)
		assert.Empty(t, items[0].DateField)
		assert.Nil(t, items[0].CreateTarget)

		assert.Equal(t, "project", items[1].SourceType)

		// Daily buckets run from today backwards, each with a provisioning step
		wantDays := []string{"2026.08.26", "2026.08.25", "2026.08.24"}
		for i, day := range wantDays {
			item := items[2+i]
			assert.Equal(t, "faultline-events-"+day, item.SourceIndex)
			assert.Equal(t, "faultline-v2-events-"+day, item.TargetIndex)
			assert.Equal(t, "event", item.SourceType)
			assert.Equal(t, "date", item.DateField)
			require.NotNil(t, item.CreateTarget)
		}
	})

	t.Run("provisioning step is bound to its own date", func(t *testing.T) {
		settings := testSettings(1)
		backend := newMockBackend()

		items, err := PlanWorkItems(&settings, "faultline", backend, now)
		require.NoError(t, err)
		require.Len(t, items, 2)

		for _, item := range items {
			require.NoError(t, item.CreateTarget(context.Background()))
		}
		require.Len(t, backend.ensureCalls, 2)
		assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), backend.ensureCalls[0])
		assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), backend.ensureCalls[1])
	})

	t.Run("explicit cutoff date is applied to daily items", func(t *testing.T) {
		settings := testSettings(1)
		settings.CutoffDate = "2026-06-01"
		backend := newMockBackend()

		items, err := PlanWorkItems(&settings, "faultline", backend, now)
		require.NoError(t, err)
		for _, item := range items {
			assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), item.Cutoff)
		}
	})

	t.Run("missing source connection is a configuration error", func(t *testing.T) {
		settings := conf.MigrationSettings{RetentionDays: 2, Collections: []string{"stack"}}
		backend := newMockBackend()

		items, err := PlanWorkItems(&settings, "faultline", backend, now)
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
		assert.Empty(t, backend.reindexCalls)
		assert.Empty(t, backend.ensureCalls, "planning must not touch the backend")
	})

	t.Run("invalid cutoff date is a configuration error", func(t *testing.T) {
		settings := testSettings(0)
		settings.CutoffDate = "01/02/2026"

		_, err := PlanWorkItems(&settings, "faultline", newMockBackend(), now)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})
}
