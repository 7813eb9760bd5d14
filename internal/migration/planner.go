package migration

import (
	"context"
	"time"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/errors"
	"github.com/faultline/faultline/internal/search"
)

// PlanWorkItems enumerates the full migration work list up front: one item per
// fixed (non-partitioned) logical collection, then one item per retained daily
// event partition from day 0 (today) back through the retention window
// inclusive. Daily items carry a CreateTarget provisioning step bound to their
// date and a cutoff filter bounding how much historical data is migrated.
//
// A missing migration source connection is a fatal configuration error: it is
// reported here, before any remote call is made, and is never retried.
func PlanWorkItems(settings *conf.MigrationSettings, scope string, backend search.Backend, now time.Time) ([]*WorkItem, error) {
	if !settings.HasMigrationSource() {
		return nil, errors.Newf("migration source connection is not configured, set migration.source.host").
			Category(errors.CategoryConfiguration).
			Component("migration").
			Build()
	}

	cutoff, err := settings.CutoffTime(now)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("migration").
			Build()
	}

	items := make([]*WorkItem, 0, len(settings.Collections)+settings.RetentionDays+1)

	for _, collection := range settings.Collections {
		items = append(items, &WorkItem{
			SourceIndex: search.MainIndex(scope),
			SourceType:  collection,
			TargetIndex: search.CollectionIndex(scope, collection),
		})
	}

	today := now.UTC().Truncate(24 * time.Hour)
	for d := 0; d <= settings.RetentionDays; d++ {
		day := today.AddDate(0, 0, -d)
		items = append(items, &WorkItem{
			SourceIndex: search.EventIndex(scope, day),
			SourceType:  "event",
			TargetIndex: search.NewEventIndex(scope, day),
			DateField:   search.EventDateField,
			Cutoff:      cutoff,
			CreateTarget: func(ctx context.Context) error {
				return backend.EnsureEventPartition(ctx, day)
			},
		})
	}

	return items, nil
}
