// Package workflow implements the Workflow Driver: the end-to-end
// orchestration of one function's journey through extract, scratch
// create/fork, iterate, and commit-apply. It is the glue between
// internal/storage (state), internal/scratchclient (remote compiles),
// internal/ctxbuild (context assembly), internal/gitutil (worktree/commit),
// and internal/commitapply (source mutation), implementing the
// daemon.WorkflowService/CommitService contracts so the daemon can
// dispatch to it directly. Grounded on BeadsLog's pattern of a single
// Driver-shaped struct wiring the State Store to every external
// collaborator.
package workflow

import (
	"context"
	"time"

	"github.com/doldecomp/agentcoord/internal/commitapply"
	"github.com/doldecomp/agentcoord/internal/ctxbuild"
	"github.com/doldecomp/agentcoord/internal/gitutil"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/storage"
)

// SplitsResolver answers which source file a function lives in. Owned by
// the out-of-scope extractor (the project's build-config/splits map); the
// Driver consumes it read-only through this interface.
type SplitsResolver interface {
	SourceFileFor(ctx context.Context, functionName string) (file string, ok bool, err error)
}

// AssemblyProvider answers a function's target assembly, extracted from
// the out-of-scope extractor's symbol/object dump.
type AssemblyProvider interface {
	AssemblyFor(ctx context.Context, functionName string) (string, error)
}

// HeaderProvider supplies the generated aggregate header internal/ctxbuild
// strips, another out-of-scope-extractor artifact.
type HeaderProvider interface {
	AggregateHeader(ctx context.Context) (string, error)
}

// ScratchAPI is the subset of *scratchclient.Client the Driver calls,
// narrowed to an interface so tests can substitute a fake.
type ScratchAPI interface {
	Create(ctx context.Context, req scratchclient.CreateRequest) (*scratchclient.Scratch, error)
	Get(ctx context.Context, slug string) (*scratchclient.Scratch, error)
	Update(ctx context.Context, slug string, req scratchclient.UpdateRequest) (*scratchclient.Scratch, error)
	ClaimWithRetry(ctx context.Context, slug string) error
	Compile(ctx context.Context, slug string, overrides *scratchclient.CompileOverrides) (*scratchclient.CompileResult, error)
	Fork(ctx context.Context, slug string) (*scratchclient.Scratch, error)
	Family(ctx context.Context, slug string) ([]scratchclient.Scratch, error)
	Search(ctx context.Context, params scratchclient.SearchParams) (*scratchclient.SearchResult, error)
	BaseURL() string
}

// ObjectPathResolver answers the object file a given source file builds
// into, another artifact owned by the out-of-scope extractor's build
// config.
type ObjectPathResolver interface {
	ObjectPathFor(ctx context.Context, sourceFile string) (string, error)
}

// Catalog answers the extractor's full function/file inventory, backing
// `extract list` and `extract files`. Owned by the out-of-scope extractor's
// splits/symbols parsing; consumed read-only through this interface like
// every other extractor artifact the Driver touches.
type Catalog interface {
	ListFunctions(ctx context.Context) ([]string, error)
	ListFiles(ctx context.Context) ([]string, error)
}

// Config bundles the Driver's tunables: lifecycle thresholds and
// concurrency defaults.
type Config struct {
	ClaimTTL               time.Duration
	BrokenBuildThreshold   int
	MatchCompletePercent   float64
	MatchThresholdToCommit float64
}

// DefaultConfig mirrors internal/config's defaults.
func DefaultConfig() Config {
	return Config{
		ClaimTTL:               time.Hour,
		BrokenBuildThreshold:   3,
		MatchCompletePercent:   95.0,
		MatchThresholdToCommit: 95.0,
	}
}

// Driver is the Workflow Driver, component E.
type Driver struct {
	Store    storage.Store
	Scratch  ScratchAPI
	Builder  *ctxbuild.Builder
	Splits   SplitsResolver
	Assembly AssemblyProvider
	Headers  HeaderProvider
	Git      *gitutil.Manager
	Applier  *commitapply.Applier
	Objects  ObjectPathResolver
	Compiler CompilerDetector
	Catalog  Catalog
	Cfg      Config
}

// New constructs a Driver with DefaultConfig.
func New(store storage.Store, scratch ScratchAPI, builder *ctxbuild.Builder, splits SplitsResolver, assembly AssemblyProvider, headers HeaderProvider, git *gitutil.Manager, applier *commitapply.Applier, objects ObjectPathResolver, compiler CompilerDetector, catalog Catalog) *Driver {
	return &Driver{
		Store:    store,
		Scratch:  scratch,
		Builder:  builder,
		Splits:   splits,
		Assembly: assembly,
		Headers:  headers,
		Git:      git,
		Applier:  applier,
		Objects:  objects,
		Compiler: compiler,
		Catalog:  catalog,
		Cfg:      DefaultConfig(),
	}
}
