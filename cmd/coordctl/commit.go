package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Apply a candidate implementation to a function's source file",
}

var (
	commitApplySource    string
	commitApplyDryRun    bool
	commitApplyForce     bool
	commitApplyDiagnosis string
)

var commitApplyCmd = &cobra.Command{
	Use:   "apply <function>",
	Short: "Replace a function's stub/definition with --source and verify the build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if commitApplySource == "" {
			return fmt.Errorf("coordctl: --source is required")
		}
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpCommitApply, rpc.CommitApplyArgs{
			FunctionName: args[0],
			SourcePath:   commitApplySource,
			DryRun:       commitApplyDryRun,
			Force:        commitApplyForce,
			Diagnosis:    commitApplyDiagnosis,
		})
		if err != nil {
			return err
		}
		var result workflow.CommitApplyResult
		if err := decode(raw, &result); err != nil {
			return err
		}
		return emit(result, func(v interface{}) string {
			r := v.(workflow.CommitApplyResult)
			switch {
			case r.Reverted:
				return cliui.FailStyle.Render("reverted") + ": " + r.Diagnostic
			case r.Applied:
				status := cliui.SuccessStyle.Render("applied")
				if r.MatchingFlipped {
					status += " " + cliui.HintStyle.Render("(matching status updated)")
				}
				return status
			default:
				return cliui.HintStyle.Render("no changes applied (dry run)")
			}
		})
	},
}

func init() {
	commitApplyCmd.Flags().StringVar(&commitApplySource, "source", "", "path to the candidate implementation's source file")
	commitApplyCmd.Flags().BoolVar(&commitApplyDryRun, "dry-run", false, "verify without writing the result")
	commitApplyCmd.Flags().BoolVar(&commitApplyForce, "force", false, "apply despite a failing verification build")
	commitApplyCmd.Flags().StringVar(&commitApplyDiagnosis, "diagnosis", "", "required with --force: why the build is expected to fail")

	commitCmd.AddCommand(commitApplyCmd)
	rootCmd.AddCommand(commitCmd)
}
