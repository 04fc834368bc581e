// File: cmd/plan.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/kimjiwoons/blindscroll/internal/browser"
	"github.com/kimjiwoons/blindscroll/internal/observability"
	"github.com/kimjiwoons/blindscroll/internal/pipeline"
	"github.com/kimjiwoons/blindscroll/internal/plancache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newPlanCmd creates and configures the `plan` command.
func newPlanCmd() *cobra.Command {
	var force bool

	planCmd := &cobra.Command{
		Use:   "plan <query> <target-domain>",
		Short: "Measures result pages and computes the scroll plan for a query/target pair",
		Long: `Plan launches the headless measurement browser, loads the search result
pages for the query on a viewport emulating the device, and derives the gesture
counts needed to reach the expand affordance and the target domain link.
The plan is cached on disk and reused until its refresh interval elapses.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			query, target := args[0], args[1]

			cache, err := openPlanCache(logger)
			if err != nil {
				return err
			}

			session, err := browser.NewSession(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			planner := pipeline.NewPlanner(session, cache, cfg, logger)

			var plan plancache.Plan
			if force {
				plan, err = planner.ComputePlan(ctx, query, target)
				if err == nil && plan.Calculated {
					if cerr := cache.Set(query, target, plan); cerr != nil {
						logger.Warn("Failed to persist recomputed plan", zap.Error(cerr))
					}
				}
			} else {
				plan, err = planner.Plan(ctx, query, target)
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode plan: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !plan.DomainFound() {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Target %q not found within %d result pages.\n", target, cfg.Search.MaxPages)
			}
			return nil
		},
	}

	planCmd.Flags().BoolVar(&force, "force", false, "Recompute the plan even if a fresh cached one exists.")
	return planCmd
}

// openPlanCache opens the configured plan store, defaulting to the per-user
// location when no path is configured.
func openPlanCache(logger *zap.Logger) (*plancache.Cache, error) {
	path := cfg.Cache.Path
	if path == "" {
		var err error
		path, err = plancache.DefaultStorePath()
		if err != nil {
			return nil, err
		}
	}
	return plancache.New(path, cfg.Cache.RefreshInterval, logger)
}
