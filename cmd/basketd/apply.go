package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
	"github.com/helixml/marketbasket/infrastructure/api/v1/dto"
)

func applyCmd(envFile *string) *cobra.Command {
	var (
		product string
		related []string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply one basket event and print the resulting summary",
		Long: `Apply one basket event directly, bypassing the inbox, and print the
anchor product's updated summary as a JSON:API document.

Do not run this against a database a serving basketd is also projecting;
use POST /api/v1/events instead.`,
		Example: `  basketd apply --product 6f1c... --related 9a2e...,c41b...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := dto.EventCreateRequest{ProductID: product, RelatedProducts: related}.Event()
			if err != nil {
				return err
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

			summary, err := client.Apply(cmd.Context(), event)
			if err != nil {
				return fmt.Errorf("apply event: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "Anchor product ID")
	cmd.Flags().StringSliceVar(&related, "related", nil, "Related product IDs, comma-separated or repeated")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func printSummary(w io.Writer, summary basket.Summary) error {
	doc := jsonapi.NewSingleResponse(jsonapi.NewSerializer().SummaryResource(summary))
	return printJSON(w, doc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
