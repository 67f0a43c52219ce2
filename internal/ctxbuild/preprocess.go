package ctxbuild

import (
	"context"
	"regexp"
	"time"

	"github.com/doldecomp/agentcoord/internal/procexec"
)

var staticAssertRE = regexp.MustCompile(`_Static_assert\s*\([^;]*\)\s*;`)

// Preprocessor runs the system C preprocessor over a context string for the
// m2c decompile path: drop #include/#ifdef/#define and strip
// _Static_assert, which the decompiler rejects. The original,
// unpreprocessed string is still what gets sent for compilation, since the
// target compiler dislikes preprocessor-synthesized constructs like
// __attribute__((noreturn)).
type Preprocessor struct {
	// CC is the preprocessor binary, typically the same compiler used to
	// build the project ("cc", "gcc", or a cross-compiler).
	CC string
	// Timeout bounds a single -E invocation.
	Timeout time.Duration
}

// Run executes `cc -E -` over src and returns the preprocessed output with
// _Static_assert statements stripped.
func (p *Preprocessor) Run(ctx context.Context, src string) (string, error) {
	cc := p.CC
	if cc == "" {
		cc = "cc"
	}

	result, err := procexec.RunStdin(ctx, p.Timeout, "", src, cc, "-E", "-")
	if err != nil {
		return "", err
	}

	return staticAssertRE.ReplaceAllString(result.Stdout, ""), nil
}
