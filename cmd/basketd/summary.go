package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
)

func summaryCmd(envFile *string) *cobra.Command {
	var (
		related  bool
		size     int
		minCount int64
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "summary <product-id>",
		Short: "Print a product's summary",
		Long: `Print a product's summary as a JSON:API document. With --related, print
only its most frequent relationships instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: product id: %w", basket.ErrInvalidInput, err)
			}

			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			client, _, err := offlineClient(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if !related {
				summary, err := client.Summaries.Get(cmd.Context(), productID)
				if err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), summary)
			}

			filter := basket.RelatedFilter{MinCount: minCount, Limit: limit}
			if size > 0 {
				filter.MinSize, filter.MaxSize = size, size
			}
			rels, err := client.Summaries.Related(cmd.Context(), productID, filter)
			if err != nil {
				return err
			}
			doc := jsonapi.NewListResponse(jsonapi.NewSerializer().RelationshipResources(rels))
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().BoolVar(&related, "related", false, "Print the most frequent relationships only")
	cmd.Flags().IntVar(&size, "size", 0, "Only combinations of exactly this many products (with --related)")
	cmd.Flags().Int64Var(&minCount, "min-count", 0, "Only combinations seen in at least this many baskets (with --related)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum relationships to print (with --related)")

	return cmd
}
