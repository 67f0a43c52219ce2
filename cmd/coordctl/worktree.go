package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Lock, unlock, and inspect subdirectory worktrees",
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every subdirectory's lock status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpWorktreeList, struct{}{})
		if err != nil {
			return err
		}
		var locks []*types.SubdirectoryLock
		if err := decode(raw, &locks); err != nil {
			return err
		}
		return emit(locks, func(v interface{}) string {
			list := v.([]*types.SubdirectoryLock)
			if len(list) == 0 {
				return cliui.HintStyle.Render("no subdirectories tracked")
			}
			out := ""
			for _, l := range list {
				state := cliui.SuccessStyle.Render("unlocked")
				if l.LockedByAgent != "" {
					state = cliui.WarnStyle.Render("locked by " + l.LockedByAgent)
				}
				out += cliui.Field(l.SubdirectoryKey, state) + "\n"
			}
			return out
		})
	},
}

var worktreeLockCmd = &cobra.Command{
	Use:   "lock <subdirectory-key>",
	Short: "Acquire an exclusive lock over a subdirectory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpWorktreeLock, rpc.WorktreeLockArgs{SubdirectoryKey: args[0]})
		if err != nil {
			return err
		}
		var lock types.SubdirectoryLock
		if err := decode(raw, &lock); err != nil {
			return err
		}
		return emit(lock, func(v interface{}) string {
			return cliui.SuccessStyle.Render("locked") + " " + args[0]
		})
	},
}

var worktreeUnlockCmd = &cobra.Command{
	Use:   "unlock <subdirectory-key>",
	Short: "Release a subdirectory lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		if _, err := d.Execute(ctx, rpc.OpWorktreeUnlock, rpc.WorktreeLockArgs{SubdirectoryKey: args[0]}); err != nil {
			return err
		}
		fmt.Println(cliui.SuccessStyle.Render("unlocked") + " " + args[0])
		return nil
	},
}

var worktreeStatusCmd = &cobra.Command{
	Use:   "status [subdirectory-key]",
	Short: "Show lock status, for one subdirectory or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		key := ""
		if len(args) == 1 {
			key = args[0]
		}
		raw, err := d.Execute(ctx, rpc.OpWorktreeStatus, rpc.WorktreeLockArgs{SubdirectoryKey: key})
		if err != nil {
			return err
		}
		var out interface{}
		if key == "" {
			var locks []*types.SubdirectoryLock
			if err := decode(raw, &locks); err != nil {
				return err
			}
			out = locks
		} else {
			var lock types.SubdirectoryLock
			if err := decode(raw, &lock); err != nil {
				return err
			}
			out = lock
		}
		return emit(out, nil)
	},
}

func init() {
	worktreeCmd.AddCommand(worktreeListCmd, worktreeLockCmd, worktreeUnlockCmd, worktreeStatusCmd)
	rootCmd.AddCommand(worktreeCmd)
}
