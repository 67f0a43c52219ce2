package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/commitapply"
	"github.com/doldecomp/agentcoord/internal/extractorfiles"
)

// stub operations work directly against a source file on disk, using
// internal/commitapply's stub-marker logic; they never touch the state
// store or daemon, since a stub marker is a property of the checkout, not
// of coordctl's coordination state.
var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Insert and inspect unimplemented-function stub markers",
}

var stubFile string

var stubAddCmd = &cobra.Command{
	Use:   "add <function>",
	Short: "Insert a stub marker for a function with no stub or definition yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stubFile == "" {
			return fmt.Errorf("coordctl: --file is required")
		}
		ctx := cmd.Context()

		dbPath, err := databasePath(ctx)
		if err != nil {
			return err
		}
		manifest, err := extractorfiles.Open(extractManifestPath(dbPath))
		if err != nil {
			return err
		}

		src, err := os.ReadFile(stubFile)
		if err != nil {
			return fmt.Errorf("coordctl: reading %s: %w", stubFile, err)
		}

		updated, err := commitapply.AddStub(ctx, manifest, string(src), args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(stubFile, []byte(updated), 0644); err != nil {
			return fmt.Errorf("coordctl: writing %s: %w", stubFile, err)
		}
		fmt.Println(cliui.SuccessStyle.Render("stub inserted") + " " + args[0] + " in " + stubFile)
		return nil
	},
}

var stubListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stub marker in a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if stubFile == "" {
			return fmt.Errorf("coordctl: --file is required")
		}
		src, err := os.ReadFile(stubFile)
		if err != nil {
			return fmt.Errorf("coordctl: reading %s: %w", stubFile, err)
		}
		names := commitapply.ListStubs(string(src))
		return emit(names, func(v interface{}) string {
			list := v.([]string)
			if len(list) == 0 {
				return cliui.HintStyle.Render("no stubs found")
			}
			return strings.Join(list, "\n")
		})
	},
}

var stubCheckCmd = &cobra.Command{
	Use:   "check <function>",
	Short: "Report whether a function currently has a stub marker or a definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stubFile == "" {
			return fmt.Errorf("coordctl: --file is required")
		}
		src, err := os.ReadFile(stubFile)
		if err != nil {
			return fmt.Errorf("coordctl: reading %s: %w", stubFile, err)
		}
		hasStub, hasDefinition := commitapply.CheckStub(string(src), args[0])
		result := struct {
			HasStub       bool `json:"has_stub"`
			HasDefinition bool `json:"has_definition"`
		}{hasStub, hasDefinition}
		return emit(result, func(v interface{}) string {
			switch {
			case hasDefinition:
				return cliui.SuccessStyle.Render("has definition")
			case hasStub:
				return cliui.WarnStyle.Render("has stub marker only")
			default:
				return cliui.HintStyle.Render("neither stub nor definition found")
			}
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{stubAddCmd, stubListCmd, stubCheckCmd} {
		c.Flags().StringVar(&stubFile, "file", "", "source file to operate on")
	}
	stubCmd.AddCommand(stubAddCmd, stubListCmd, stubCheckCmd)
	rootCmd.AddCommand(stubCmd)
}
