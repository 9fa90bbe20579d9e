package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"badge-engine/workers"

	"github.com/spf13/cobra"
)

// printJSON writes v to stdout for scripting.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every active dynamic rule once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.engine.SweepDynamicRules(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var retuneCmd = &cobra.Command{
	Use:   "retune",
	Short: "Rescale badge thresholds from completion rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.engine.RetuneDifficulty(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var seasonCmd = &cobra.Command{
	Use:   "season [season-id]",
	Short: "Start a season, or poll the season service when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if seed, ok, err := loadSeed(ctx, ""); err != nil {
			return err
		} else if ok && len(seed.SeasonTemplates) > 0 {
			rt.engine.Seasons.Templates = seed.SeasonTemplates
		}

		var started bool
		if len(args) == 1 {
			started, err = rt.engine.OnSeasonChange(ctx, args[0])
		} else {
			started, err = rt.engine.Seasons.CheckSeason(ctx)
		}
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"started": started})
	},
}

var streaksCmd = &cobra.Command{
	Use:   "reset-streaks",
	Short: "Reset broken check-in streaks and prune old stat windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		reset, err := rt.engine.Streaks.ResetBroken(ctx, time.Now())
		if err != nil {
			return err
		}
		pruned, err := rt.engine.Stats.PruneWindows(ctx, time.Now().Add(-workers.WindowRetention))
		if err != nil {
			return fmt.Errorf("prune windows: %w", err)
		}
		return printJSON(map[string]any{"streaks_reset": reset, "windows_pruned": pruned})
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd, retuneCmd, seasonCmd, streaksCmd)
}
