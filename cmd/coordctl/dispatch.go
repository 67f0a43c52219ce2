package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doldecomp/agentcoord/internal/agentid"
	"github.com/doldecomp/agentcoord/internal/commitapply"
	"github.com/doldecomp/agentcoord/internal/config"
	"github.com/doldecomp/agentcoord/internal/ctxbuild"
	"github.com/doldecomp/agentcoord/internal/daemon"
	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/extractorfiles"
	"github.com/doldecomp/agentcoord/internal/gitutil"
	"github.com/doldecomp/agentcoord/internal/logging"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/storage/sqlite"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

// dispatcher sends one operation to wherever it should run: a live daemon
// over its Unix socket, or an in-process Server when none is reachable. A
// command implementation never knows which; it always goes through this.
type dispatcher interface {
	Execute(ctx context.Context, operation string, args interface{}) (json.RawMessage, error)
	Close() error
}

// daemonDispatcher forwards to a running daemon.
type daemonDispatcher struct{ client *rpc.Client }

func (d *daemonDispatcher) Execute(ctx context.Context, operation string, args interface{}) (json.RawMessage, error) {
	resp, err := d.client.Execute(operation, args)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (d *daemonDispatcher) Close() error { return d.client.Close() }

// localDispatcher runs every operation in-process against a freshly opened
// store, for one-shot invocations with no daemon running.
type localDispatcher struct {
	server *daemon.Server
	actor  string
	close  func() error
}

func (d *localDispatcher) Execute(ctx context.Context, operation string, args interface{}) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("coordctl: marshal args: %w", err)
	}
	data, err := d.server.Dispatch(ctx, &rpc.Request{Operation: operation, Args: argsJSON, Actor: d.actor})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

func (d *localDispatcher) Close() error {
	if d.close != nil {
		return d.close()
	}
	return nil
}

// databasePath resolves --db, walking up from cwd for a ".coordctl/coordctl.db"
// when not given explicitly, defaulting to creating one in the resolved
// git root.
func databasePath(ctx context.Context) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if fromConfig := config.GetString("db"); fromConfig != "" {
		return fromConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ".coordctl", "coordctl.db")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}

	root, err := gitutil.ResolveRoot(ctx, cwd)
	if err != nil {
		return "", errs.Precondition("coordctl: not inside a git checkout and no --db given")
	}
	return filepath.Join(root.MainRepoRoot, ".coordctl", "coordctl.db"), nil
}

// extractManifestPath is the conventional location of the extractor-boundary
// manifest coordctl's bundled file-based adapter reads (internal/extractorfiles).
func extractManifestPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "extract.toml")
}

// newDispatcher tries the daemon first and falls back to an in-process
// Server. needsWorkflow selects whether the Workflow Driver and Commit
// Applier (which need the remote scratch service and git) are constructed;
// commands that only touch claims/locks/state skip that cost.
func newDispatcher(ctx context.Context, needsWorkflow bool) (dispatcher, error) {
	dbPath, err := databasePath(ctx)
	if err != nil {
		return nil, err
	}
	actor := actorID()
	if actor == "unknown" {
		if derived := agentid.Derive(agentid.IsClaudeProcess); derived != "" {
			actor = derived
		}
	}

	if !flagNoDaemon {
		socketPath := rpc.ShortSocketPath(filepath.Dir(dbPath))
		client, err := rpc.TryConnect(socketPath)
		if err == nil && client != nil {
			client.SetActor(actor)
			client.SetDatabasePath(dbPath)
			return &daemonDispatcher{client: client}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("coordctl: creating %s: %w", filepath.Dir(dbPath), err)
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("coordctl: opening database %s: %w", dbPath, err)
	}

	log := logging.New(logging.Options{
		Level:     config.GetString("log.level"),
		JSON:      config.GetBool("log.json"),
		Component: "coordctl",
	})

	server := daemon.NewServer(store, "", version, log)

	if needsWorkflow {
		root, err := gitutil.ResolveRoot(ctx, ".")
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		git := gitutil.NewManager(root.MainRepoRoot)

		manifest, err := extractorfiles.Open(extractManifestPath(dbPath))
		if err != nil {
			_ = store.Close()
			return nil, err
		}

		configDir := filepath.Join(filepath.Dir(dbPath), "agents")
		scratch, err := scratchclient.New(ctx, actor, configDir, nil)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("coordctl: connecting to scratch service: %w", err)
		}

		builder := &ctxbuild.Builder{Preprocessor: &ctxbuild.Preprocessor{CC: config.GetString("process.cc")}}
		applier := commitapply.New(git, manifest, manifest)
		applier.NinjaTimeout = config.GetDuration("process.ninja-timeout")

		driver := workflow.New(store, scratch, builder, manifest, manifest, manifest, git, applier, manifest, manifest, manifest)
		server.Workflow = driver
		server.Commit = driver
	}

	return &localDispatcher{server: server, actor: actor, close: store.Close}, nil
}
