package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Inspect the extractor's function/file inventory and pull context for one",
}

var extractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every function the extractor knows about",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpExtractList, struct{}{})
		if err != nil {
			return err
		}
		var names []string
		if err := decode(raw, &names); err != nil {
			return err
		}
		return emit(names, func(v interface{}) string { return strings.Join(v.([]string), "\n") })
	},
}

var extractFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "List every source file the extractor assigns functions to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpExtractFiles, struct{}{})
		if err != nil {
			return err
		}
		var files []string
		if err := decode(raw, &files); err != nil {
			return err
		}
		return emit(files, func(v interface{}) string { return strings.Join(v.([]string), "\n") })
	},
}

var (
	extractGetCreateScratch bool
	extractGetDecompile     bool
)

var extractGetCmd = &cobra.Command{
	Use:   "get <function>",
	Short: "Resolve a function's source/assembly/context and find-or-create its scratch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpExtractGet, rpc.ExtractGetArgs{
			FunctionName:  args[0],
			CreateScratch: extractGetCreateScratch,
			Decompile:     extractGetDecompile,
		})
		if err != nil {
			return err
		}
		var result workflow.ExtractGetResult
		if err := decode(raw, &result); err != nil {
			return err
		}
		return emit(result, func(v interface{}) string {
			r := v.(workflow.ExtractGetResult)
			status := cliui.SuccessStyle.Render("found")
			if r.Created {
				status = cliui.SuccessStyle.Render("created")
			}
			return status + " scratch " + r.ScratchSlug + " for " + r.FunctionName + " (" + r.SourceFile + ")"
		})
	},
}

func init() {
	extractGetCmd.Flags().BoolVar(&extractGetCreateScratch, "create-scratch", false, "create a new scratch if no usable match is found")
	extractGetCmd.Flags().BoolVar(&extractGetDecompile, "decompile", false, "run the remote decompiler against the new scratch")

	extractCmd.AddCommand(extractListCmd, extractFilesCmd, extractGetCmd)
	rootCmd.AddCommand(extractCmd)
}
