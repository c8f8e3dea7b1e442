package cli

import (
	"github.com/spf13/cobra"

	"github.com/depscope/depscope/pkg/integrations/crates"
	"github.com/depscope/depscope/pkg/pipeline"
)

// newLatestCmd creates the latest command, a direct registry lookup
// that works without a snapshot.
func newLatestCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "latest <name>",
		Short: "Look up a crate's latest published version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			backend, err := newBackend(ctx, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			sp := newSpinnerWithContext(ctx, "Querying crates.io...")
			sp.Start()
			info, err := crates.NewClient(backend, pipeline.DefaultTTL).FetchCrate(ctx, args[0], refresh)
			sp.Stop()
			if err != nil {
				return err
			}

			printSuccess("%s %s", info.Name, StyleHighlight.Render(info.Version))
			if info.Newest != "" && info.Newest != info.Version {
				printDetail("newest (incl. prerelease): %s", info.Newest)
			}
			if info.Description != "" {
				printDetail("%s", info.Description)
			}
			if info.Repository != "" {
				printDetail("%s", info.Repository)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the HTTP lookup cache")
	return cmd
}
