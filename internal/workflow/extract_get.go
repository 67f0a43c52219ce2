package workflow

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/types"
)

// CompilerDetector answers the compiler id and canonical flag string a
// function should be compiled with, another artifact the out-of-scope
// extractor derives from the project's build config.
type CompilerDetector interface {
	CompilerFor(ctx context.Context, functionName string) (compiler, flags string, err error)
}

// ExtractGetResult is the response for OpExtractGet.
type ExtractGetResult struct {
	FunctionName string  `json:"function_name"`
	SourceFile   string  `json:"source_file"`
	ScratchSlug  string  `json:"scratch_slug"`
	MatchPercent float64 `json:"match_percent"`
	Created      bool    `json:"created"`
}

// ExtractGet is the `extract get <name> [--create-scratch]` operation:
// locate the function's source file, obtain its assembly and compile
// context, and find-or-create a scratch for it.
func (d *Driver) ExtractGet(ctx context.Context, actor string, args rpc.ExtractGetArgs) (interface{}, error) {
	sourceFile, ok, err := d.Splits.SourceFileFor(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolving source file for %s: %w", args.FunctionName, err)
	}
	if !ok {
		return nil, errs.Precondition("workflow: %s is not a known function (no splits entry)", args.FunctionName)
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

	scratch, created, err := d.findOrCreateScratch(ctx, args, sourceFile, asm, compileCtx)
	if err != nil {
		return nil, err
	}

	fn, err := d.Store.GetFunction(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading function %s: %w", args.FunctionName, err)
	}
	if fn == nil {
		fn = &types.Function{Name: args.FunctionName, SourceFile: sourceFile, Status: types.StatusClaimed}
	}
	fn.SourceFile = sourceFile
	fn.LocalScratchSlug = scratch.Slug
	fn.MatchPercent = scratch.MatchPercent()
	if fn.ClaimedByAgent == "" {
		fn.ClaimedByAgent = actor
	}
	if err := d.Store.UpsertFunction(ctx, fn); err != nil {
		return nil, fmt.Errorf("workflow: upserting function %s: %w", args.FunctionName, err)
	}

	if err := d.Store.UpsertScratch(ctx, toStoredScratch(scratch, args.FunctionName)); err != nil {
		return nil, fmt.Errorf("workflow: upserting scratch %s: %w", scratch.Slug, err)
	}

	if err := d.Store.LogAudit(ctx, &types.AuditEntry{
		EntityType: "function",
		EntityID:   args.FunctionName,
		Action:     types.ActionUpdated,
		NewValue:   scratch.Slug,
		AgentID:    actor,
		Metadata:   "extract_get",
	}); err != nil {
		return nil, fmt.Errorf("workflow: logging audit for %s: %w", args.FunctionName, err)
	}

	return &ExtractGetResult{
		FunctionName: args.FunctionName,
		SourceFile:   sourceFile,
		ScratchSlug:  scratch.Slug,
		MatchPercent: fn.MatchPercent,
		Created:      created,
	}, nil
}

func toStoredScratch(s *scratchclient.Scratch, functionName string) *types.Scratch {
	return &types.Scratch{
		Slug:         s.Slug,
		Instance:     types.InstanceLocal,
		FunctionName: functionName,
		Score:        s.Score,
		MaxScore:     s.MaxScore,
		MatchPercent: s.MatchPercent(),
		ClaimToken:   s.ClaimToken,
	}
}

// findOrCreateScratch implements the extract-get find-then-create fallback:
// search the remote service, fork the best family match if one is usable,
// else create a new scratch.
func (d *Driver) findOrCreateScratch(ctx context.Context, args rpc.ExtractGetArgs, sourceFile, asm, compileCtx string) (*scratchclient.Scratch, bool, error) {
	if best, err := d.findBestCandidate(ctx, args.FunctionName); err == nil && best != nil {
		forked, err := d.Scratch.Fork(ctx, best.Slug)
		if err != nil {
			return nil, false, fmt.Errorf("workflow: forking scratch %s: %w", best.Slug, err)
		}
		if err := d.Scratch.ClaimWithRetry(ctx, forked.Slug); err != nil {
			return nil, false, fmt.Errorf("workflow: claiming forked scratch %s: %w", forked.Slug, err)
		}
		updated, err := d.Scratch.Update(ctx, forked.Slug, scratchclient.UpdateRequest{Context: compileCtx})
		if err != nil {
			return nil, false, fmt.Errorf("workflow: refreshing context on %s: %w", forked.Slug, err)
		}
		return updated, false, nil
	}

	if !args.CreateScratch {
		return nil, false, errs.Precondition("workflow: no usable scratch found for %s and --create-scratch not set", args.FunctionName)
	}

	compiler, flags, err := d.Compiler.CompilerFor(ctx, args.FunctionName)
	if err != nil {
		return nil, false, fmt.Errorf("workflow: detecting compiler for %s: %w", args.FunctionName, err)
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
		return nil, false, fmt.Errorf("workflow: creating scratch for %s: %w", args.FunctionName, err)
	}

	if args.Decompile {
		// The remote decompiler runs against the preprocessed context; the
		// Builder's context is restored here so subsequent compiles use the
		// original, non-preprocessed form.
		restored, err := d.Scratch.Update(ctx, created.Slug, scratchclient.UpdateRequest{Context: compileCtx})
		if err == nil {
			created = restored
		}
	}

	if err := d.Scratch.ClaimWithRetry(ctx, created.Slug); err != nil {
		return nil, false, fmt.Errorf("workflow: claiming new scratch %s: %w", created.Slug, err)
	}

	return created, true, nil
}

// findBestCandidate searches for existing scratches matching functionName
// and returns the family member with the highest match percent, or nil if
// none are usable.
func (d *Driver) findBestCandidate(ctx context.Context, functionName string) (*scratchclient.Scratch, error) {
	results, err := d.Scratch.Search(ctx, scratchclient.SearchParams{Search: functionName, PageSize: 10})
	if err != nil {
		return nil, err
	}
	if results == nil || len(results.Scratches) == 0 {
		return nil, nil
	}

	var best *scratchclient.Scratch
	bestPercent := -1.0
	for i := range results.Scratches {
		candidate := results.Scratches[i]
		family, err := d.Scratch.Family(ctx, candidate.Slug)
		if err != nil {
			continue
		}
		members := append([]scratchclient.Scratch{candidate}, family...)
		for j := range members {
			member := members[j]
			if pct := member.MatchPercent(); pct > bestPercent {
				bestPercent = pct
				copied := member
				best = &copied
			}
		}
	}
	return best, nil
}
