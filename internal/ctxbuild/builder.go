package ctxbuild

import "context"

// Builder produces the context string sent with every scratch operation.
// It is stateless beyond its optional Preprocessor, so one Builder is
// reused across functions within a process.
type Builder struct {
	Preprocessor *Preprocessor
}

// BuildForCompile strips the target function's own body from the aggregate
// header, preserving every other body, declaration, call site, and
// struct/union/enum/typedef verbatim. This is the form sent alongside the
// source for a compile-only scratch.
func (b *Builder) BuildForCompile(aggregateHeader, targetFunction string) string {
	return StripTarget(aggregateHeader, targetFunction)
}

// BuildForDecompile is BuildForCompile's output run through the system
// preprocessor for the m2c decompile path, since m2c cannot parse
// #include/#ifdef/#define or _Static_assert. If no Preprocessor is
// configured, the unpreprocessed context is returned unchanged — the
// decompile path degrades to raw context rather than failing outright.
func (b *Builder) BuildForDecompile(ctx context.Context, aggregateHeader, targetFunction string) (string, error) {
	compileCtx := b.BuildForCompile(aggregateHeader, targetFunction)
	if b.Preprocessor == nil {
		return compileCtx, nil
	}
	return b.Preprocessor.Run(ctx, compileCtx)
}

// BuildAllStripped strips every function body in the aggregate header,
// useful as a standalone "everything compiles without pulling the whole
// project" sanity context independent of any one target function.
func (b *Builder) BuildAllStripped(aggregateHeader string) string {
	return StripBodies(aggregateHeader, StripAll)
}
