package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zetta-ds/carsigef/internal/application/ingest"
	"github.com/zetta-ds/carsigef/internal/infrastructure/database/postgres"
)

func newTotalsImportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totals-import",
		Short: "Merge municipality CAR totals from the MGI registry into the dataset CSV",
		Long: `Queries the MGI registry for the number of distinct CARs registered per
municipality and year, then left-joins the result onto the dataset CSV as the
total_cars_municipio column. The registry aggregation scans the full raw
relation and can take several minutes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, cfg.MGI, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			queryCtx := ctx
			if cfg.MGI.QueryTimeout > 0 {
				var cancel context.CancelFunc
				queryCtx, cancel = context.WithTimeout(ctx, cfg.MGI.QueryTimeout)
				defer cancel()
			}

			repo := postgres.NewTotalsRepo(pool, logger)
			totals, err := repo.FetchTotals(queryCtx)
			if err != nil {
				return err
			}

			merger := ingest.NewTotalsMerger(logger)
			stats, err := merger.Merge(cfg.Dataset.Path, totals)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "merged %d registry totals into %d rows (%d matched)\n",
				len(totals), stats.Rows, stats.Matched)
			return nil
		},
	}
	return cmd
}
