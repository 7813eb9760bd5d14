// Package migrate implements the 'faultline migrate' subcommand, which runs
// the index generation migration job against the configured backends.
package migrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/migration"
	"github.com/faultline/faultline/internal/observability"
	"github.com/faultline/faultline/internal/search"
)

// Command creates the migrate command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate indexed data to the new index generation",
		Long: `Migrate moves all retained data from the previous index generation to the
new one by driving asynchronous remote reindex tasks to completion. The job
runs until every work item has either completed or permanently failed, then
repoints the read aliases so migrated partitions go live.

The job keeps no checkpoint: if the process restarts mid-run it re-plans from
scratch and re-dispatches unfinished items. Permanently failed items are audit
logged and left for operator intervention; they do not roll back completed
items.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunMigration(cmd.Context(), settings)
		},
	}
	return cmd
}

// RunMigration wires the backend client, metrics and job together and runs
// the migration to completion.
func RunMigration(ctx context.Context, settings *conf.Settings) error {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	client, err := search.NewClient(search.Config{
		Host:           settings.Search.Host,
		Username:       settings.Search.Username,
		Password:       settings.Search.Password,
		Scope:          settings.Search.Scope,
		Timeout:        time.Duration(settings.Search.Timeout) * time.Second,
		RequestsPerSec: settings.Search.RequestsPerSec,
		Debug:          settings.Debug,
		Source: search.RemoteSource{
			Host:     settings.Migration.Source.Host,
			Username: settings.Migration.Source.Username,
			Password: settings.Migration.Source.Password,
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetMetrics(metrics.Search)

	// Long migrations benefit from live metrics, serve them when enabled
	var wg sync.WaitGroup
	quitChan := make(chan struct{})
	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return fmt.Errorf("error initializing metrics endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
	}
	defer func() {
		close(quitChan)
		wg.Wait()
	}()

	job := migration.NewJob(migration.JobOptions{
		Migration: settings.Migration,
		Scope:     settings.Search.Scope,
		Metrics:   metrics.Migration,
	}, client)

	if err := job.Run(ctx); err != nil {
		return err
	}

	summary := job.Summary()
	fmt.Printf("Migration %s finished in %s: %d/%d items completed, %d failed, %d retries\n",
		summary.RunID, summary.Elapsed.Round(time.Second),
		summary.Completed, summary.Planned, summary.Failed, summary.Retries)
	if summary.Failed > 0 {
		fmt.Println("Some items failed permanently, see logs/migration.log for the audit records.")
	}
	return nil
}
