package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depscope/depscope/pkg/analysis"
	"github.com/depscope/depscope/pkg/snapshot"
)

// snapshotFlags binds the flags every read-only query shares.
func snapshotFlags(cmd *cobra.Command, root, input *string) {
	cmd.Flags().StringVar(root, "root", "", "ecosystem root (default $DEPSCOPE_ROOT or cwd)")
	cmd.Flags().StringVarP(input, "input", "i", "", "artifact path (default <root>/.depscope/snapshot.tsv)")
}

func newConflictsCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List packages declared at conflicting versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			conflicts := s.Conflicts()
			if len(conflicts) == 0 {
				printSuccess("No version conflicts")
				return nil
			}
			printWarning("%d packages with conflicting declarations", len(conflicts))
			for _, p := range conflicts {
				fmt.Println(StyleHighlight.Render(p.Name))
				printDetail("declared: %s", joinVersions(p.Declared))
				printDetail("latest: %s, used by %d repos", p.Latest, p.UsedBy)
			}
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func newUsageCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Rank packages by how many repositories use them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			for _, p := range s.Usage() {
				marker := " "
				if p.Conflict {
					marker = styleIconWarning.Render(iconWarning)
				}
				fmt.Printf("%s %s %s %s\n",
					marker,
					StyleNumber.Render(fmt.Sprintf("%3d", p.UsedBy)),
					StyleValue.Render(p.Name),
					StyleDim.Render(fmt.Sprintf("(%s, latest %s)", p.Tier, p.Latest)))
			}
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func newGapsCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "List packages the ecosystem uses that the hub does not declare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			if s.Aggregation.HubName == snapshot.SentinelNone {
				printInfo("Snapshot was generated without a hub, rerun with --hub")
				return nil
			}
			gaps := s.Gaps()
			if len(gaps) == 0 {
				printSuccess("No gaps: the hub declares every package the ecosystem uses")
				return nil
			}
			printWarning("%d packages missing from the hub", len(gaps))
			for _, p := range gaps {
				fmt.Println(StyleHighlight.Render(p.Name))
				printDetail("used by %d repos (%s), latest %s", p.UsedBy, p.Tier, p.Latest)
			}
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func newHubCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Show every consumer's relationship to the hub package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			if s.Aggregation.HubName == snapshot.SentinelNone {
				printInfo("Snapshot was generated without a hub, rerun with --hub")
				return nil
			}
			fmt.Println(StyleTitle.Render(fmt.Sprintf("%s %s", s.Aggregation.HubName, s.Aggregation.HubVersion)))
			consumers := s.HubConsumers()
			if len(consumers) == 0 {
				printInfo("No repository depends on the hub")
				return nil
			}
			counts := map[analysis.HubStatus]int{}
			for _, r := range consumers {
				counts[r.HubRelation]++
				icon := hubIcon(r.HubRelation)
				fmt.Printf("%s %s %s\n", icon, StyleValue.Render(r.Name),
					StyleDim.Render(fmt.Sprintf("(%s at %s)", r.HubRelation, r.HubVersion)))
			}
			printNewline()
			printDetail("consumers: current %d · outdated %d · ahead %d · unknown %d",
				counts[analysis.HubCurrent], counts[analysis.HubOutdated],
				counts[analysis.HubAhead], counts[analysis.HubGap])
			agg := s.Aggregation
			printDetail("coverage: %d packages current · %d outdated · %d gaps",
				agg.HubCurrent, agg.HubOutdated, agg.HubGap)
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func hubIcon(rel analysis.HubStatus) string {
	switch rel {
	case analysis.HubCurrent:
		return styleIconSuccess.Render(iconSuccess)
	case analysis.HubOutdated:
		return styleIconError.Render(iconError)
	default:
		return styleIconWarning.Render(iconWarning)
	}
}

func newPkgCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "pkg <name>",
		Short: "Show one package and every repository that declares it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			p, ok := s.PackageByName(args[0])
			if !ok {
				return fmt.Errorf("package %q is not declared anywhere in the ecosystem", args[0])
			}
			fmt.Println(StyleTitle.Render(p.Name))
			printKeyValue("latest", p.Latest)
			printKeyValue("source", string(p.Source))
			printKeyValue("locator", p.Locator)
			printKeyValue("used by", fmt.Sprintf("%d repos (%s)", p.UsedBy, p.Tier))
			switch p.HubStatus {
			case analysis.HubGap:
				printKeyValue("hub", "gap, not declared by the hub")
			case analysis.HubNone:
			default:
				printKeyValue("hub", fmt.Sprintf("%s at %s", p.HubStatus, p.HubVersion))
			}
			if p.Conflict {
				printWarning("Conflicting declarations: %s", joinVersions(p.Declared))
			}
			printNewline()
			for _, use := range s.UsesOf(p.Name) {
				fmt.Printf("  %s %s %s\n",
					StyleValue.Render(use.Repo.Name),
					StyleHighlight.Render(use.Declaration.Version),
					StyleDim.Render(fmt.Sprintf("(%s, %s)", use.Declaration.Kind, use.Mapping.Breaking)))
			}
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func newReposCmd() *cobra.Command {
	var root, input string
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List every repository in the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(root, input)
			if err != nil {
				return err
			}
			for _, r := range s.Repos {
				fmt.Printf("%s %s %s\n",
					StyleValue.Render(r.Name),
					StyleHighlight.Render(r.Version),
					StyleDim.Render(fmt.Sprintf("(%s, %d deps, hub %s)", r.Parent, r.DepCount, r.HubRelation)))
			}
			return nil
		},
	}
	snapshotFlags(cmd, &root, &input)
	return cmd
}

func joinVersions(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
