package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/depscope/depscope/pkg/pipeline"
)

// newGenerateCmd creates the generate command, the write path of the
// whole tool: scan, resolve, classify, and persist the snapshot.
func newGenerateCmd() *cobra.Command {
	var (
		hub     string
		output  string
		workers int
		timeout time.Duration
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "generate [root]",
		Short: "Scan the ecosystem and write the snapshot artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			rootArg := ""
			if len(args) == 1 {
				rootArg = args[0]
			}
			root, err := resolveRoot(rootArg)
			if err != nil {
				return err
			}

			backend, err := newBackend(ctx, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			prog := newProgress(logger)
			sp := newSpinnerWithContext(ctx, "Scanning ecosystem...")
			sp.Start()

			res, err := pipeline.Generate(ctx, pipeline.Options{
				Root:    root,
				Hub:     hub,
				Output:  output,
				Workers: workers,
				Timeout: timeout,
				Refresh: refresh,
				Backend: backend,
				Logf:    logger.Debugf,
			})
			sp.Stop()
			if err != nil {
				printError("Scan failed: %v", err)
				return err
			}

			agg := res.Snapshot.Aggregation
			if len(res.Warnings) > 0 {
				printWarning("Snapshot written with %d warnings", len(res.Warnings))
				for _, w := range res.Warnings {
					printDetail("%s", w)
				}
			} else {
				printSuccess("Snapshot written")
			}
			printStats(agg.TotalRepos, agg.TotalPackages, agg.TotalDeclarations, refresh)
			printFile(res.Path)
			if agg.Conflicts > 0 {
				printNextStep("Inspect version conflicts", "depscope conflicts")
			}
			if agg.Breaking > 0 {
				printNextStep("Review breaking updates", "depscope usage")
			}
			if agg.HubGap > 0 {
				printNextStep("See packages missing from the hub", "depscope gaps")
			}
			prog.done("Generated snapshot")
			return nil
		},
	}

	cmd.Flags().StringVar(&hub, "hub", "", "hub package name for relationship tracking")
	cmd.Flags().StringVarP(&output, "output", "o", "", "artifact path (default <root>/.depscope/snapshot.tsv)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent version lookups (default 8)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-lookup timeout (default 10s)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the HTTP lookup cache")

	return cmd
}
