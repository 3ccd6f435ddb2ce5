package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	appanalytics "github.com/zetta-ds/carsigef/internal/application/analytics"
	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
)

func newDatasetCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Dataset maintenance commands",
	}
	cmd.AddCommand(newDatasetInspectCommand(opts))
	return cmd
}

// datasetReport is the output of `carsigef dataset inspect`.
type datasetReport struct {
	Rows       int64                    `json:"rows"`
	Metadata   similarity.Metadata      `json:"metadata"`
	Aggregates similarity.Aggregates    `json:"aggregates"`
	Bands      []appanalytics.BandCount `json:"bands"`
}

func newDatasetInspectCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the dataset and print its shape, dimensions and aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}

			store := dataset.NewStore(cfg.Dataset, logger, nil)
			defer store.Close()
			service := appanalytics.NewService(store, logger, nil)

			ctx := cmd.Context()
			meta, err := service.Metadata(ctx)
			if err != nil {
				return err
			}
			aggs, err := service.FetchAggregates(ctx, similarity.FilterCriteria{})
			if err != nil {
				return err
			}
			bands, err := service.BandDistribution(ctx, similarity.FilterCriteria{})
			if err != nil {
				return err
			}

			report := datasetReport{
				Rows:       store.RowCount(),
				Metadata:   *meta,
				Aggregates: aggs,
				Bands:      bands,
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "rows:              %d\n", report.Rows)
			fmt.Fprintf(out, "regions:           %d\n", len(meta.Regions))
			fmt.Fprintf(out, "states:            %d\n", len(meta.States))
			fmt.Fprintf(out, "municipalities:    %d\n", len(meta.Municipalities))
			fmt.Fprintf(out, "mean similarity:   %.2f%%\n", aggs.MeanSimilarity)
			fmt.Fprintf(out, "median similarity: %.2f%%\n", aggs.MedianSimilarity)
			for _, b := range bands {
				fmt.Fprintf(out, "band %-8s %d (%.1f%%)\n", b.Band, b.Count, b.Share*100)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	return cmd
}
