package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run the end-to-end claim-to-commit workflow",
}

var (
	workflowFinishForce     bool
	workflowFinishDiagnosis string
)

var workflowFinishCmd = &cobra.Command{
	Use:   "finish <function>",
	Short: "Verify and commit a claimed function's current scratch source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpWorkflowFinish, rpc.WorkflowFinishArgs{
			FunctionName: args[0],
			Force:        workflowFinishForce,
			Diagnosis:    workflowFinishDiagnosis,
		})
		if err != nil {
			return err
		}
		var result workflow.WorkflowFinishResult
		if err := decode(raw, &result); err != nil {
			return err
		}
		return emit(result, func(v interface{}) string {
			r := v.(workflow.WorkflowFinishResult)
			status := cliui.SuccessStyle.Render("committed")
			if r.ForcedBroken {
				status = cliui.WarnStyle.Render("committed (forced, build broken)")
			}
			return fmt.Sprintf("%s %s as %s (%.1f%%)", status, r.FunctionName, r.CommitHash, r.MatchPercent)
		})
	},
}

func init() {
	workflowFinishCmd.Flags().BoolVar(&workflowFinishForce, "force", false, "commit despite a failing verification build")
	workflowFinishCmd.Flags().StringVar(&workflowFinishDiagnosis, "diagnosis", "", "required with --force: why the build is expected to fail")

	workflowCmd.AddCommand(workflowFinishCmd)
	rootCmd.AddCommand(workflowCmd)
}
