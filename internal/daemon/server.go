// Package daemon runs the long-lived process behind internal/rpc's Unix
// socket, dispatching one-shot JSON command envelopes to the State Store
// and Workflow Driver so repeated CLI invocations from the same agent don't
// each pay SQLite connection and migration overhead. Grounded on BeadsLog's
// internal/daemon registry/discovery bookkeeping, generalized into a
// single-socket server.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/doldecomp/agentcoord/internal/debug"
	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/logging"
	"github.com/doldecomp/agentcoord/internal/query"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/storage"
	"github.com/doldecomp/agentcoord/internal/workflow"
)

// HandlerFunc answers one operation. args is the raw Args payload from the
// request; the return value is marshaled into the Response's Data field.
type HandlerFunc func(ctx context.Context, req *rpc.Request) (interface{}, error)

// Server listens on a Unix socket and dispatches requests by operation name.
type Server struct {
	Store    storage.Store
	Workflow WorkflowService // may be nil until internal/workflow is wired in
	Commit   CommitService   // may be nil until internal/commitapply is wired in
	Query    *query.Engine
	Version  string
	Log      *logging.Logger

	socketPath string
	listener   net.Listener
	lock       *flock.Flock
	startedAt  time.Time

	handlers map[string]HandlerFunc

	mu       sync.Mutex
	lastReq  time.Time
	shutdown chan struct{}
}

// WorkflowService is the Workflow Driver contract the daemon dispatches
// extract/scratch/workflow operations to.
type WorkflowService interface {
	ExtractList(ctx context.Context) ([]string, error)
	ExtractFiles(ctx context.Context) ([]string, error)
	ExtractGet(ctx context.Context, actor string, args rpc.ExtractGetArgs) (interface{}, error)

	ScratchCreate(ctx context.Context, args rpc.ScratchCreateArgs) (*scratchclient.Scratch, error)
	ScratchCompile(ctx context.Context, actor string, args rpc.ScratchCompileArgs) (interface{}, error)
	ScratchUpdate(ctx context.Context, args rpc.ScratchUpdateArgs) (*scratchclient.Scratch, error)
	ScratchGet(ctx context.Context, args rpc.ScratchGetArgs) (*scratchclient.Scratch, error)
	ScratchSearch(ctx context.Context, args rpc.ScratchSearchArgs) (*scratchclient.SearchResult, error)
	ScratchSearchContext(ctx context.Context, args rpc.ScratchSearchArgs) ([]workflow.ScratchSearchContextResult, error)

	WorkflowFinish(ctx context.Context, actor string, args rpc.WorkflowFinishArgs) (interface{}, error)
}

// CommitService is the Commit Applier contract.
type CommitService interface {
	Apply(ctx context.Context, actor string, args rpc.CommitApplyArgs) (interface{}, error)
}

// NewServer constructs a Server bound to socketPath, ready to call Serve on.
func NewServer(store storage.Store, socketPath, version string, log *logging.Logger) *Server {
	s := &Server{
		Store:      store,
		Query:      query.New(store),
		Version:    version,
		Log:        log,
		socketPath: socketPath,
		startedAt:  time.Now(),
		shutdown:   make(chan struct{}),
	}
	s.handlers = s.buildHandlers()
	return s
}

// Serve acquires the daemon lock, binds the socket, and accepts connections
// until Shutdown is requested or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	dir := filepath.Dir(s.socketPath)
	lock, err := rpc.AcquireDaemonLock(dir)
	if err != nil {
		return errs.Precondition("daemon: another daemon already holds the lock in %s", dir)
	}
	s.lock = lock
	defer func() { _ = s.lock.Unlock() }()

	if _, err := rpc.EnsureSocketDir(s.socketPath); err != nil {
		return err
	}
	_ = os.Remove(s.socketPath) // clear a stale socket left by a crash

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener
	defer func() {
		_ = s.listener.Close()
		_ = rpc.CleanupSocketDir(s.socketPath)
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdown:
		}
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// RequestShutdown stops Serve's accept loop gracefully.
func (s *Server) RequestShutdown() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return
	}

	var req rpc.Request
	resp := rpc.Response{}
	if err := json.Unmarshal(line, &req); err != nil {
		resp.Error = "daemon: malformed request: " + err.Error()
	} else {
		s.mu.Lock()
		s.lastReq = time.Now()
		s.mu.Unlock()

		data, err := s.dispatch(ctx, &req)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			if data != nil {
				raw, marshalErr := json.Marshal(data)
				if marshalErr != nil {
					resp.Success = false
					resp.Error = "daemon: marshal response: " + marshalErr.Error()
				} else {
					resp.Data = raw
				}
			}
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		debug.Logf("daemon: marshal response envelope: %v", err)
		return
	}
	writer := bufio.NewWriter(conn)
	_, _ = writer.Write(out)
	_ = writer.WriteByte('\n')
	_ = writer.Flush()
}

func (s *Server) dispatch(ctx context.Context, req *rpc.Request) (interface{}, error) {
	handler, ok := s.handlers[req.Operation]
	if !ok {
		return nil, errs.Precondition("daemon: unknown operation %q", req.Operation)
	}
	return handler(ctx, req)
}

// Dispatch runs one request against this Server's handler map directly, no
// socket involved. The CLI uses this to execute a command in-process when
// no daemon is running, so every subcommand's behavior is identical whether
// or not a daemon happens to be up.
func (s *Server) Dispatch(ctx context.Context, req *rpc.Request) (interface{}, error) {
	return s.dispatch(ctx, req)
}

func (s *Server) uptime() time.Duration { return time.Since(s.startedAt) }
