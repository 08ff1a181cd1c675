package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/config"
)

var listCmd = &cobra.Command{
	Use:   "list [profile]",
	Short: "Show providers of a profile and whether they can be used",
	Long:  `Without a profile, list the known profiles. With one, show every provider in priority order with its credential and strike state.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active strikes",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear <provider>",
	Short: "Lift the strike on a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the provider and profile catalog",
	Long:  `Load the bundled catalog plus PROVIDERS_FILE and PROFILES_FILE and report every problem found.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runList(cmd *cobra.Command, args []string) error {
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			for _, name := range deps.Router.Profiles() {
				p, _ := deps.Router.Profile(name)
				fmt.Fprintf(out, "%-16s %s\n", name, p.Description)
			}
			return nil
		}

		statuses, err := deps.Router.ListAvailable(ctx, args[0])
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PRIORITY\tPROVIDER\tMODEL\tTIER\tKEY\tSTATE")
		for i, s := range statuses {
			state := "ready"
			switch {
			case !s.HasCredential:
				state = "no key"
			case s.Strike != nil:
				state = "struck until " + s.Strike.RenewsAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, s.ID, s.Model, s.Tier, yesNo(s.HasCredential), state)
		}
		return tw.Flush()
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		out := cmd.OutOrStdout()
		status := deps.Router.StrikeStatus(ctx)

		if status.ActiveCount == 0 {
			fmt.Fprintln(out, "No active strikes")
			return nil
		}

		ids := make([]string, 0, len(status.Records))
		for id := range status.Records {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tRENEWS AT\tREASON")
		for _, id := range ids {
			rec := status.Records[id]
			fmt.Fprintf(tw, "%s\t%s\t%s\n", id, rec.RenewsAt.Format(time.RFC3339), rec.Reason)
		}
		return tw.Flush()
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	provider := args[0]
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if !deps.Router.ResetStrike(ctx, provider) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no active strike\n", provider)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Strike on %s cleared\n", provider)
		return nil
	})
}

// runValidate only needs the catalog, so it skips the strike store
func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(cmd.Context())
	if err != nil {
		return err
	}

	catalog, err := config.LoadCatalog(cfg.Catalog.ProvidersFile, cfg.Catalog.ProfilesFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems := catalog.Validate()
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("catalog has %d problem(s)", len(problems))
	}

	fmt.Fprintf(out, "Catalog OK: %d providers, %d profiles\n", len(catalog.ProviderIDs()), len(catalog.ProfileNames()))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
