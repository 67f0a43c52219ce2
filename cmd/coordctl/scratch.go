package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/cliui"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "Create, update, and search the remote decompilation scratches",
}

var scratchCreateDecompile bool

var scratchCreateCmd = &cobra.Command{
	Use:   "create <function>",
	Short: "Create a new scratch for a function and claim it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpScratchCreate, rpc.ScratchCreateArgs{
			FunctionName: args[0],
			Decompile:    scratchCreateDecompile,
		})
		if err != nil {
			return err
		}
		var s scratchclient.Scratch
		if err := decode(raw, &s); err != nil {
			return err
		}
		return emit(s, func(v interface{}) string {
			sc := v.(scratchclient.Scratch)
			return cliui.SuccessStyle.Render("created") + " " + sc.Slug
		})
	},
}

var scratchGetCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Fetch a scratch's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpScratchGet, rpc.ScratchGetArgs{Slug: args[0]})
		if err != nil {
			return err
		}
		var s scratchclient.Scratch
		if err := decode(raw, &s); err != nil {
			return err
		}
		return emit(s, func(v interface{}) string {
			sc := v.(scratchclient.Scratch)
			return fmt.Sprintf("%s: %d/%d (%.1f%%)", sc.Slug, sc.Score, sc.MaxScore, sc.MatchPercent())
		})
	},
}

var scratchUpdateSource string

var scratchUpdateCmd = &cobra.Command{
	Use:   "update <slug>",
	Short: "Push new source code to a scratch, re-claiming it if ownership has lapsed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		raw, err := d.Execute(ctx, rpc.OpScratchUpdate, rpc.ScratchUpdateArgs{
			Slug:       args[0],
			SourceCode: scratchUpdateSource,
		})
		if err != nil {
			return err
		}
		var s scratchclient.Scratch
		if err := decode(raw, &s); err != nil {
			return err
		}
		return emit(s, func(v interface{}) string {
			sc := v.(scratchclient.Scratch)
			return fmt.Sprintf("%s: %d/%d (%.1f%%)", sc.Slug, sc.Score, sc.MaxScore, sc.MatchPercent())
		})
	},
}

var (
	scratchSearchQuery    string
	scratchSearchPlatform string
	scratchSearchCompiler string
	scratchSearchPageSize int
	scratchSearchContext  bool
)

var scratchSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search existing scratches, optionally fetching full detail per hit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDispatcher(ctx, true)
		if err != nil {
			return err
		}
		defer d.Close()

		searchArgs := rpc.ScratchSearchArgs{
			Search:   scratchSearchQuery,
			Platform: scratchSearchPlatform,
			Compiler: scratchSearchCompiler,
			PageSize: scratchSearchPageSize,
		}

		if scratchSearchContext {
			raw, err := d.Execute(ctx, rpc.OpScratchSearchContext, searchArgs)
			if err != nil {
				return err
			}
			var results []workflow.ScratchSearchContextResult
			if err := decode(raw, &results); err != nil {
				return err
			}
			return emit(results, func(v interface{}) string {
				list := v.([]workflow.ScratchSearchContextResult)
				out := ""
				for _, r := range list {
					out += cliui.Field(r.Scratch.Slug, r.Scratch.Name) + "\n"
				}
				return out
			})
		}

		raw, err := d.Execute(ctx, rpc.OpScratchSearch, searchArgs)
		if err != nil {
			return err
		}
		var result scratchclient.SearchResult
		if err := decode(raw, &result); err != nil {
			return err
		}
		return emit(result, func(v interface{}) string {
			r := v.(scratchclient.SearchResult)
			out := fmt.Sprintf("%d total\n", r.Total)
			for _, s := range r.Scratches {
				out += cliui.Field(s.Slug, s.Name) + "\n"
			}
			return out
		})
	},
}

func init() {
	scratchCreateCmd.Flags().BoolVar(&scratchCreateDecompile, "decompile", false, "run the remote decompiler against the new scratch")
	scratchUpdateCmd.Flags().StringVar(&scratchUpdateSource, "source", "", "new source code (read from a file with @path, or given literally)")
	scratchSearchCmd.Flags().StringVar(&scratchSearchQuery, "search", "", "search query")
	scratchSearchCmd.Flags().StringVar(&scratchSearchPlatform, "platform", "", "filter by platform")
	scratchSearchCmd.Flags().StringVar(&scratchSearchCompiler, "compiler", "", "filter by compiler")
	scratchSearchCmd.Flags().IntVar(&scratchSearchPageSize, "page-size", 20, "maximum results to return")
	scratchSearchCmd.Flags().BoolVar(&scratchSearchContext, "with-detail", false, "fetch full detail for every hit")

	scratchCmd.AddCommand(scratchCreateCmd, scratchGetCmd, scratchUpdateCmd, scratchSearchCmd)
	rootCmd.AddCommand(scratchCmd)
}
