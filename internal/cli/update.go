package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depscope/depscope/pkg/update"
)

func updateFlags(cmd *cobra.Command, opts *update.Options) {
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report the plan without writing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "skip git safety checks")
	cmd.Flags().BoolVar(&opts.ForceCommit, "force-commit", false, "commit the rewritten manifest")
}

// newUpdateCmd creates the update command for a single repository.
func newUpdateCmd() *cobra.Command {
	var (
		root, input string
		opts        update.Options
	)

	cmd := &cobra.Command{
		Use:   "update <repo>",
		Short: "Apply safe dependency bumps to one repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			rootDir, err := resolveRoot(root)
			if err != nil {
				return err
			}
			opts.Logf = logger.Debugf

			res := update.New(rootDir, nil).UpdateRepo(ctx, s, args[0], opts)
			reportResult(res)
			if res.Outcome == update.OutcomeBlocked || res.Outcome == update.OutcomeFailed {
				return fmt.Errorf("update of %s was %s: %s", res.Repo, res.Outcome, res.Reason)
			}
			return nil
		},
	}

	snapshotFlags(cmd, &root, &input)
	updateFlags(cmd, &opts)
	return cmd
}

// newEcoUpdateCmd creates the ecosystem-wide update command.
func newEcoUpdateCmd() *cobra.Command {
	var (
		root, input string
		self        string
		opts        update.Options
	)

	cmd := &cobra.Command{
		Use:   "eco-update",
		Short: "Apply safe dependency bumps across the whole ecosystem",
		Long:  `Runs the single-repository update for every repository in the snapshot except the hub and, when --self is given, the named repository. One repository being blocked or failing never stops the others.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			rootDir, err := resolveRoot(root)
			if err != nil {
				return err
			}
			opts.Logf = logger.Debugf

			results := update.New(rootDir, nil).UpdateAll(ctx, s, self, opts)
			blocked := 0
			for _, res := range results {
				reportResult(res)
				if res.Outcome == update.OutcomeBlocked || res.Outcome == update.OutcomeFailed {
					blocked++
				}
			}
			printNewline()
			printInfo("%d repositories processed", len(results))
			if blocked > 0 {
				return fmt.Errorf("%d repositories were blocked or failed", blocked)
			}
			return nil
		},
	}

	snapshotFlags(cmd, &root, &input)
	updateFlags(cmd, &opts)
	cmd.Flags().StringVar(&self, "self", "", "repository to exclude (the tool's own repo)")
	return cmd
}

func reportResult(res update.RepoResult) {
	switch res.Outcome {
	case update.OutcomeUpdated:
		printSuccess("%s: %d dependencies bumped", res.Repo, len(res.Changes))
	case update.OutcomePlanned:
		printInfo("%s: %d bumps planned (dry run)", res.Repo, len(res.Changes))
	case update.OutcomeNoChanges:
		printInfo("%s: already current", res.Repo)
	case update.OutcomeBlocked:
		printWarning("%s: blocked (%s)", res.Repo, res.Reason)
	case update.OutcomeFailed:
		printError("%s: failed (%s)", res.Repo, res.Reason)
	}
	for _, c := range res.Changes {
		printDetail("%s %s %s %s", c.Package, c.From, iconArrow, c.To)
	}
}
