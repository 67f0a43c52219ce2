// Package commitapply implements the Commit Applier: it mutates a source
// file to replace a function's stub marker or existing definition with new
// code, optionally flips the file's matching-status entry in the build
// config, verifies the result compiles, and reverts on failure. Grounded on
// BeadsLog's internal/git for the verify/revert control flow (run an
// external check, restore via `git checkout` on failure) and on
// internal/cparser for locating the existing definition's byte span instead
// of regex-matching it.
package commitapply

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/gitutil"
	"github.com/doldecomp/agentcoord/internal/procexec"
)

// AddressResolver answers a function's symbol address, needed to keep
// stub markers and definitions in ascending-address order within a file.
// The address-to-symbol map itself is owned by the out-of-scope extractor;
// this interface is the read-only boundary this package consumes it
// through (the same Extractor/Context-Builder boundary drawn elsewhere for
// the aggregate header).
type AddressResolver interface {
	AddressOf(ctx context.Context, functionName string) (addr uint64, ok bool, err error)
}

// MatchConfig is the build-config's per-file matching-status annotation,
// likewise owned by the out-of-scope extractor and consumed read/write
// through this narrow interface.
type MatchConfig interface {
	IsFileFullyMatched(ctx context.Context, file string) (bool, error)
	SetMatching(ctx context.Context, file string, matching bool) error
}

// Request describes one apply operation.
type Request struct {
	FunctionName string
	SourceFile   string // path relative to root
	NewCode      string // full replacement function text (signature + body)
	ObjectPath   string // object file ninja should rebuild to verify
	DryRun       bool
	Force        bool // bypass verify-compile; diagnosis required by the caller
	Diagnosis    string
}

// Result reports what Apply did.
type Result struct {
	Applied        bool
	Reverted       bool
	Diagnostic     string
	MatchingFlipped bool
}

// Applier owns the external dependencies needed to verify and commit.
type Applier struct {
	Git          *gitutil.Manager
	Resolver     AddressResolver
	MatchCfg     MatchConfig
	NinjaTimeout time.Duration
}

// New constructs an Applier. resolver/matchCfg may be nil, in which case
// address-ordered insertion and matching-status flips are skipped.
func New(git *gitutil.Manager, resolver AddressResolver, matchCfg MatchConfig) *Applier {
	return &Applier{Git: git, Resolver: resolver, MatchCfg: matchCfg, NinjaTimeout: 2 * time.Minute}
}

// Apply replaces req.FunctionName's stub marker or existing definition in
// root/req.SourceFile with req.NewCode, verifies the object still compiles
// (unless req.DryRun or req.Force), and reverts the file on a failed
// verify.
func (a *Applier) Apply(ctx context.Context, root string, req Request) (*Result, error) {
	fullPath := root + string(os.PathSeparator) + req.SourceFile

	original, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, errs.Precondition("commitapply: reading %s: %v", req.SourceFile, err)
	}
	src := string(original)

	updated, err := replaceFunction(src, req.FunctionName, req.NewCode)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		return &Result{Applied: false}, nil
	}

	if err := os.WriteFile(fullPath, []byte(updated), 0644); err != nil {
		return nil, errs.Precondition("commitapply: writing %s: %v", req.SourceFile, err)
	}

	if req.Force {
		return a.finalize(ctx, root, req)
	}

	diag, verifyErr := a.verify(ctx, root, req.ObjectPath)
	if verifyErr != nil {
		if revertErr := a.Git.CheckoutPath(ctx, root, req.SourceFile); revertErr != nil {
			return nil, errs.Precondition("commitapply: verify failed (%v) and revert failed: %v", verifyErr, revertErr)
		}
		return &Result{Reverted: true, Diagnostic: diag}, errs.Precondition("commitapply: %s failed to compile after replacement: %s", req.FunctionName, diag)
	}

	return a.finalize(ctx, root, req)
}

func (a *Applier) finalize(ctx context.Context, root string, req Request) (*Result, error) {
	result := &Result{Applied: true}

	if a.MatchCfg != nil {
		fullyMatched, err := a.MatchCfg.IsFileFullyMatched(ctx, req.SourceFile)
		if err == nil && fullyMatched {
			if err := a.MatchCfg.SetMatching(ctx, req.SourceFile, true); err == nil {
				result.MatchingFlipped = true
			}
		}
	}

	return result, nil
}

// verify runs the single-object build (ninja <obj-path>) and extracts
// compiler diagnostics from its output on failure.
func (a *Applier) verify(ctx context.Context, root, objectPath string) (string, error) {
	if _, err := procexec.Run(ctx, a.NinjaTimeout, root, "ninja", objectPath); err != nil {
		if extErr, ok := err.(*errs.ExternalProcessError); ok {
			return extractDiagnostic(extErr.Stderr, extErr.Stdout), err
		}
		return err.Error(), err
	}
	return "", nil
}

// extractDiagnostic pulls the compiler's error lines out of a build's
// combined output, favoring stderr (where most toolchains write
// diagnostics) and falling back to stdout.
func extractDiagnostic(stderr, stdout string) string {
	var lines []string
	for _, l := range strings.Split(stderr, "\n") {
		if strings.Contains(l, "error:") {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		for _, l := range strings.Split(stdout, "\n") {
			if strings.Contains(l, "error:") {
				lines = append(lines, l)
			}
		}
	}
	if len(lines) == 0 {
		if strings.TrimSpace(stderr) != "" {
			return strings.TrimSpace(stderr)
		}
		return strings.TrimSpace(stdout)
	}
	return strings.Join(lines, "\n")
}

func commitMessage(functionName string, matchPercent float64, scratchURL string) string {
	return fmt.Sprintf("Match %s (%.0f%%)\n\nScratch: %s", functionName, matchPercent, scratchURL)
}

// Commit stages sourceFile and commits it with a standard match-percent
// commit message, returning the new commit hash.
func (a *Applier) Commit(ctx context.Context, root, sourceFile, functionName string, matchPercent float64, scratchURL string) (string, error) {
	return a.Git.CommitPaths(ctx, root, commitMessage(functionName, matchPercent, scratchURL), []string{sourceFile})
}
