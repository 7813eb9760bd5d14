// Package indices implements the 'faultline indices' subcommand, an operator
// helper that shows both index generations with their document counts.
package indices

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/errors"
	"github.com/faultline/faultline/internal/search"
)

// Command creates the indices command
func Command(settings *conf.Settings) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Show index generations and document counts",
		Long: `Indices lists the previous and new generation indices for the configured
scope together with their document counts. Useful before and after a migration
to verify how much data moved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listIndices(cmd.Context(), settings, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of daily event partitions to list")
	return cmd
}

func listIndices(ctx context.Context, settings *conf.Settings, days int) error {
	client, err := search.NewClient(search.Config{
		Host:           settings.Search.Host,
		Username:       settings.Search.Username,
		Password:       settings.Search.Password,
		Scope:          settings.Search.Scope,
		Timeout:        time.Duration(settings.Search.Timeout) * time.Second,
		RequestsPerSec: settings.Search.RequestsPerSec,
		Debug:          settings.Debug,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	scope := settings.Search.Scope
	names := make([]string, 0, len(settings.Migration.Collections)*2+days*2+1)

	names = append(names, search.MainIndex(scope))
	for _, collection := range settings.Migration.Collections {
		names = append(names, search.CollectionIndex(scope, collection))
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for d := 0; d < days; d++ {
		day := today.AddDate(0, 0, -d)
		names = append(names, search.EventIndex(scope, day), search.NewEventIndex(scope, day))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tDOCS")
	for _, name := range names {
		count, err := client.Count(ctx, name)
		switch {
		case err == nil:
			fmt.Fprintf(w, "%s\t%d\n", name, count)
		case errors.HasCategory(err, errors.CategoryNotFound):
			fmt.Fprintf(w, "%s\tmissing\n", name)
		default:
			return err
		}
	}
	return w.Flush()
}
