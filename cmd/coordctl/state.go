package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/lifecycle"
	"github.com/doldecomp/agentcoord/internal/query"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect, validate, and query coordination state",
}

var stateStatusCategory string

var stateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List functions, optionally filtered by status category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateStatus, rpc.StateStatusArgs{Category: stateStatusCategory})
		if err != nil {
			return err
		}
		var fns []*types.Function
		if err := decode(raw, &fns); err != nil {
			return err
		}
		return emit(fns, func(v interface{}) string {
			list := v.([]*types.Function)
			if len(list) == 0 {
				return cliui.HintStyle.Render("no matching functions")
			}
			out := ""
			for _, fn := range list {
				out += cliui.Field(fn.Name, string(fn.Status)) + "\n"
			}
			return out
		})
	},
}

var stateValidateFix bool

var stateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every function's stored status against its derived status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateValidate, rpc.StateValidateArgs{Fix: stateValidateFix})
		if err != nil {
			return err
		}
		var report lifecycle.Report
		if err := decode(raw, &report); err != nil {
			return err
		}
		return emit(report, func(v interface{}) string {
			r := v.(lifecycle.Report)
			if len(r.Divergences) == 0 {
				return cliui.SuccessStyle.Render(fmt.Sprintf("checked %d functions, no divergences", r.Checked))
			}
			out := fmt.Sprintf("checked %d, %d divergent:\n", r.Checked, len(r.Divergences))
			for _, dv := range r.Divergences {
				out += "  " + dv.FunctionName + ": " + string(dv.StoredStatus) + " -> " + string(dv.DerivedStatus) + "\n"
			}
			return out
		})
	},
}

var (
	stateHistoryEntityType string
	stateHistoryEntityID   string
	stateHistoryLimit      int
	stateHistoryOffset     int
)

var stateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit trail, optionally filtered to one entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateHistory, rpc.StateHistoryArgs{
			EntityType: stateHistoryEntityType,
			EntityID:   stateHistoryEntityID,
			Limit:      stateHistoryLimit,
			Offset:     stateHistoryOffset,
		})
		if err != nil {
			return err
		}
		var entries []*types.AuditEntry
		if err := decode(raw, &entries); err != nil {
			return err
		}
		return emit(entries, func(v interface{}) string {
			list := v.([]*types.AuditEntry)
			out := ""
			for _, e := range list {
				out += fmt.Sprintf("%s  %-8s %s/%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.EntityType, e.EntityID)
			}
			return out
		})
	},
}

var stateAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Summarize every agent's active claims and held subdirectories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateAgents, struct{}{})
		if err != nil {
			return err
		}
		var summaries []query.AgentSummary
		if err := decode(raw, &summaries); err != nil {
			return err
		}
		return emit(summaries, func(v interface{}) string {
			list := v.([]query.AgentSummary)
			out := ""
			for _, a := range list {
				out += cliui.Field(a.AgentID, fmt.Sprintf("%d claims", a.ActiveClaims)) + "\n"
			}
			return out
		})
	},
}

var stateStaleWithin int64

var stateStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List scratches that haven't been checked recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateStale, rpc.StateStaleArgs{WithinSeconds: stateStaleWithin})
		if err != nil {
			return err
		}
		var scratches []*types.Scratch
		if err := decode(raw, &scratches); err != nil {
			return err
		}
		return emit(scratches, func(v interface{}) string {
			list := v.([]*types.Scratch)
			if len(list) == 0 {
				return cliui.HintStyle.Render("nothing stale")
			}
			out := ""
			for _, s := range list {
				out += cliui.Field(s.Slug, s.FunctionName) + "\n"
			}
			return out
		})
	},
}

var stateProgressWorktree string

var stateProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Report aggregate match/commit progress for a worktree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, false)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpStateProgress, rpc.StateProgressArgs{WorktreePath: stateProgressWorktree})
		if err != nil {
			return err
		}
		var snap types.ProgressSnapshot
		if err := decode(raw, &snap); err != nil {
			return err
		}
		return emit(snap, func(v interface{}) string {
			s := v.(types.ProgressSnapshot)
			return fmt.Sprintf("%d/%d matched, %d committed, %d merged (avg %.1f%%)",
				s.Matched, s.TotalFunctions, s.Committed, s.Merged, s.AverageMatchPct)
		})
	},
}

func init() {
	stateStatusCmd.Flags().StringVar(&stateStatusCategory, "category", "", "filter by function status")
	stateValidateCmd.Flags().BoolVar(&stateValidateFix, "fix", false, "rewrite divergent statuses in place")
	stateHistoryCmd.Flags().StringVar(&stateHistoryEntityType, "entity-type", "", "filter by entity type")
	stateHistoryCmd.Flags().StringVar(&stateHistoryEntityID, "entity-id", "", "filter by entity id")
	stateHistoryCmd.Flags().IntVar(&stateHistoryLimit, "limit", 50, "maximum entries to return")
	stateHistoryCmd.Flags().IntVar(&stateHistoryOffset, "offset", 0, "pagination offset")
	stateStaleCmd.Flags().Int64Var(&stateStaleWithin, "within-seconds", 0, "override the stale window, in seconds")
	stateProgressCmd.Flags().StringVar(&stateProgressWorktree, "worktree", "", "worktree path to scope the snapshot to")

	stateCmd.AddCommand(stateStatusCmd, stateValidateCmd, stateHistoryCmd, stateAgentsCmd, stateStaleCmd, stateProgressCmd)
	rootCmd.AddCommand(stateCmd)
}
