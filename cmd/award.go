package cmd

import (
	"github.com/spf13/cobra"
)

var notify bool

var awardCmd = &cobra.Command{
	Use:   "award <user-id> <badge-id>",
	Short: "Grant a badge by hand",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.engine.Award(ctx, args[0], args[1], notify)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <badge-id>",
	Short: "Remove a badge from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		removed, err := rt.engine.RevokeBadge(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"revoked": removed})
	},
}

func init() {
	awardCmd.Flags().BoolVar(&notify, "notify", true, "emit a badge-earned notification")
	rootCmd.AddCommand(awardCmd, revokeCmd)
}
