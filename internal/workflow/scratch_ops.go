package workflow

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
)

// ScratchSearchContextResult pairs a search hit with its full source/context
// so `scratch search-context` can show an agent a candidate's body without a
// separate `scratch get` round trip.
type ScratchSearchContextResult struct {
	Scratch scratchclient.Scratch `json:"scratch"`
	Detail  *scratchclient.Scratch `json:"detail,omitempty"`
}

// ScratchCreate is the standalone `scratch create` operation: build the
// compile context for functionName and create a scratch without going
// through ExtractGet's find-or-create search. Used when an agent wants a
// fresh scratch regardless of existing family matches.
func (d *Driver) ScratchCreate(ctx context.Context, args rpc.ScratchCreateArgs) (*scratchclient.Scratch, error) {
	sourceFile, ok, err := d.Splits.SourceFileFor(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolving source file for %s: %w", args.FunctionName, err)
	}
	if !ok {
		return nil, fmt.Errorf("workflow: %s is not a known function (no splits entry)", args.FunctionName)
	}

	asm, err := d.Assembly.AssemblyFor(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading assembly for %s: %w", args.FunctionName, err)
	}
	header, err := d.Headers.AggregateHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading aggregate header: %w", err)
	}
	compileCtx := d.Builder.BuildForCompile(header, args.FunctionName)

	compiler, flags, err := d.Compiler.CompilerFor(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: detecting compiler for %s: %w", args.FunctionName, err)
	}

	created, err := d.Scratch.Create(ctx, scratchclient.CreateRequest{
		Name:          args.FunctionName,
		Compiler:      compiler,
		CompilerFlags: flags,
		TargetAsm:     asm,
		Context:       compileCtx,
		DiffLabel:     args.FunctionName,
		Decompile:     args.Decompile,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: creating scratch for %s: %w", args.FunctionName, err)
	}
	if err := d.Scratch.ClaimWithRetry(ctx, created.Slug); err != nil {
		return nil, fmt.Errorf("workflow: claiming new scratch %s: %w", created.Slug, err)
	}

	_ = sourceFile // resolved only to validate the function is known
	return created, nil
}

// ScratchGet is the `scratch get <slug>` operation: fetch the scratch as it
// currently stands on the remote service.
func (d *Driver) ScratchGet(ctx context.Context, args rpc.ScratchGetArgs) (*scratchclient.Scratch, error) {
	return d.Scratch.Get(ctx, args.Slug)
}

// ScratchUpdate is the `scratch update <slug>` operation: push new source
// code to an existing scratch without compiling it, retrying once on a lost
// claim the same way ScratchCompile does.
func (d *Driver) ScratchUpdate(ctx context.Context, args rpc.ScratchUpdateArgs) (*scratchclient.Scratch, error) {
	updated, err := d.Scratch.Update(ctx, args.Slug, scratchclient.UpdateRequest{SourceCode: args.SourceCode})
	if err != nil {
		if reclaimErr := d.Scratch.ClaimWithRetry(ctx, args.Slug); reclaimErr != nil {
			return nil, fmt.Errorf("workflow: updating scratch %s: %w", args.Slug, err)
		}
		updated, err = d.Scratch.Update(ctx, args.Slug, scratchclient.UpdateRequest{SourceCode: args.SourceCode})
		if err != nil {
			return nil, fmt.Errorf("workflow: updating scratch %s after re-claim: %w", args.Slug, err)
		}
	}
	return updated, nil
}

// ScratchSearch is the `scratch search` operation: a thin pass-through to the
// remote service's search endpoint.
func (d *Driver) ScratchSearch(ctx context.Context, args rpc.ScratchSearchArgs) (*scratchclient.SearchResult, error) {
	return d.Scratch.Search(ctx, scratchclient.SearchParams{
		Search:   args.Search,
		Platform: args.Platform,
		Compiler: args.Compiler,
		PageSize: args.PageSize,
	})
}

// ScratchSearchContext is the `scratch search-context` operation: like
// ScratchSearch, but fetches the full detail (including source code) for
// every hit so an agent can review candidates' bodies without issuing a
// `scratch get` per result.
func (d *Driver) ScratchSearchContext(ctx context.Context, args rpc.ScratchSearchArgs) ([]ScratchSearchContextResult, error) {
	results, err := d.Scratch.Search(ctx, scratchclient.SearchParams{
		Search:   args.Search,
		Platform: args.Platform,
		Compiler: args.Compiler,
		PageSize: args.PageSize,
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		return nil, nil
	}

	out := make([]ScratchSearchContextResult, 0, len(results.Scratches))
	for _, hit := range results.Scratches {
		detail, err := d.Scratch.Get(ctx, hit.Slug)
		if err != nil {
			out = append(out, ScratchSearchContextResult{Scratch: hit})
			continue
		}
		out = append(out, ScratchSearchContextResult{Scratch: hit, Detail: detail})
	}
	return out, nil
}
