package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim, release, and list function ownership",
}

var claimAddCmd = &cobra.Command{
	Use:   "add <function>",
	Short: "Claim a function for the acting agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpClaimAdd, rpc.ClaimAddArgs{FunctionName: args[0]})
		if err != nil {
			return err
		}
		var claim types.Claim
		if err := decode(raw, &claim); err != nil {
			return err
		}
		return emit(claim, func(v interface{}) string {
			c := v.(types.Claim)
			return cliui.SuccessStyle.Render("claimed") + " " + c.FunctionName + " for " + c.AgentID +
				" (expires " + c.ExpiresAt.Format("15:04:05") + ")"
		})
	},
}

var claimReleaseCmd = &cobra.Command{
	Use:   "release <function>",
	Short: "Release a previously claimed function",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		if _, err := d.Execute(ctx, rpc.OpClaimRelease, rpc.ClaimAddArgs{FunctionName: args[0]}); err != nil {
			return err
		}
		fmt.Println(cliui.SuccessStyle.Render("released") + " " + args[0])
		return nil
	},
}

var claimListCmd = &cobra.Command{
	Use:   "list",
	Short: "List this agent's active claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpClaimList, struct{}{})
		if err != nil {
			return err
		}
		var claims []*types.Claim
		if err := decode(raw, &claims); err != nil {
			return err
		}
		return emit(claims, func(v interface{}) string {
			list := v.([]*types.Claim)
			if len(list) == 0 {
				return cliui.HintStyle.Render("no active claims")
			}
			out := ""
			for _, c := range list {
				out += cliui.Field(c.FunctionName, "expires "+c.ExpiresAt.Format("15:04:05")) + "\n"
			}
			return out
		})
	},
}

func init() {
	claimCmd.AddCommand(claimAddCmd, claimReleaseCmd, claimListCmd)
	rootCmd.AddCommand(claimCmd)
}
