package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/v1/dto"
)

// replayEvent is one entry of a replay file.
type replayEvent struct {
	ProductID       string   `yaml:"product_id"`
	RelatedProducts []string `yaml:"related_products"`
}

// replayFile is the document form of a replay file. A bare list of events
// is accepted too.
type replayFile struct {
	Events []replayEvent `yaml:"events"`
}

func (e replayEvent) event() (basket.CartProductItemsMatched, error) {
	return dto.EventCreateRequest{ProductID: e.ProductID, RelatedProducts: e.RelatedProducts}.Event()
}

// parseReplay reads events from YAML or JSON.
func parseReplay(r io.Reader) ([]replayEvent, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse replay file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []replayEvent
		if err := node.Decode(&entries); err != nil {
			return nil, fmt.Errorf("parse replay file: %w", err)
		}
		return entries, nil
	case yaml.MappingNode:
		if !hasKey(node, "events") {
			return nil, errors.New(`parse replay file: document has no "events" key`)
		}
		var doc replayFile
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse replay file: %w", err)
		}
		return doc.Events, nil
	default:
		return nil, errors.New("parse replay file: expected a list of events or an events document")
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func replayCmd(envFile *string) *cobra.Command {
	var (
		queue       bool
		skipInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Apply basket events from a YAML or JSON file, in order",
		Long: `Apply basket events from a YAML or JSON file, in file order.

The file holds either a list of events or a document with an "events" key:

  events:
    - product_id: 6f1c...
      related_products: [9a2e..., c41b...]

By default events are applied directly. With --queue they are enqueued and
the inbox is drained before the command returns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open replay file: %w", err)
			}
			entries, err := parseReplay(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			client, logger, err := offlineClient(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			ctx := cmd.Context()
			submit := func(event basket.CartProductItemsMatched) error {
				if queue {
					_, err := client.Events.Enqueue(ctx, event)
					return err
				}
				_, err := client.Apply(ctx, event)
				return err
			}

			var applied, skipped int
			for i, entry := range entries {
				event, err := entry.event()
				if err == nil {
					err = submit(event)
				}
				if err != nil {
					if skipInvalid && errors.Is(err, basket.ErrInvalidInput) {
						logger.Warn("skipping invalid event", slog.Int("index", i), slog.String("error", err.Error()))
						skipped++
						continue
					}
					return fmt.Errorf("event %d: %w", i, err)
				}
				applied++
			}

			if queue {
				if err := client.Drain(ctx); err != nil {
					return fmt.Errorf("drain inbox: %w", err)
				}
				dead, err := client.Events.CountDeadLettered(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d events, skipped %d, dead-lettered total %d\n", applied, skipped, dead)
				return nil
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d events, skipped %d\n", applied, skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&queue, "queue", false, "Enqueue events and drain the inbox instead of applying directly")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip events that can never be applied instead of stopping")

	return cmd
}
