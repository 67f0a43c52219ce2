package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/doldecomp/agentcoord/internal/debug"
)

// ClientVersion is overridden at startup from the coordctl build version, so
// Health can report a client/daemon compatibility mismatch.
var ClientVersion = "0.0.0"

// Client is a connection to a running daemon, bound to one socket for its
// lifetime.
type Client struct {
	conn       net.Conn
	socketPath string
	timeout    time.Duration
	dbPath     string
	actor      string
}

// TryConnect attempts to connect to the daemon at socketPath using the
// default dial timeout. It returns (nil, nil) — not an error — whenever no
// daemon appears to be running or reachable, so callers can fall back to
// the in-process path transparently.
func TryConnect(socketPath string) (*Client, error) {
	return TryConnectWithTimeout(socketPath, 200*time.Millisecond)
}

// TryConnectWithTimeout is TryConnect with an explicit dial timeout.
func TryConnectWithTimeout(socketPath string, dialTimeout time.Duration) (*Client, error) {
	socketExists := endpointExists(socketPath)

	if !socketExists {
		dir := filepath.Dir(socketPath)
		running, _ := tryDaemonLock(dir)
		if !running {
			debug.Logf("rpc: no daemon lock held and socket missing, no daemon running")
			cleanupStaleDaemonArtifacts(dir)
			return nil, nil
		}
		// Lock held but socket missing: a daemon may be mid-startup. Re-check
		// once to resolve the race rather than failing the probe outright.
		socketExists = endpointExists(socketPath)
		if !socketExists {
			debug.Logf("rpc: daemon lock held but socket still missing after re-check")
			return nil, nil
		}
	}

	if dialTimeout <= 0 {
		dialTimeout = 200 * time.Millisecond
	}

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		debug.Logf("rpc: dial failed: %v", err)
		dir := filepath.Dir(socketPath)
		running, _ := tryDaemonLock(dir)
		if !running {
			cleanupStaleDaemonArtifacts(dir)
			_ = os.Remove(socketPath)
		}
		return nil, nil
	}

	client := &Client{
		conn:       conn,
		socketPath: socketPath,
		timeout:    30 * time.Second,
	}

	health, err := client.Health()
	if err != nil {
		debug.Logf("rpc: health check failed: %v", err)
		_ = conn.Close()
		return nil, nil
	}
	if health.Status == "unhealthy" {
		debug.Logf("rpc: daemon reports unhealthy: %s", health.Error)
		_ = conn.Close()
		return nil, nil
	}

	debug.Logf("rpc: connected to daemon (status=%s uptime=%.1fs)", health.Status, health.UptimeSeconds)
	return client, nil
}

// endpointExists reports whether a Unix socket file exists at path.
func endpointExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

// cleanupStaleDaemonArtifacts removes a lock file left behind by a daemon
// that crashed without releasing it cleanly (flock is released by the OS on
// process exit, so a present-but-unlockable file here means the file itself
// is stale, not the lock).
func cleanupStaleDaemonArtifacts(dir string) {
	lockPath := filepath.Join(dir, daemonLockName)
	if _, err := os.Stat(lockPath); err != nil {
		return
	}
	if err := os.Remove(lockPath); err != nil {
		debug.Logf("rpc: failed to remove stale daemon lock: %v", err)
		return
	}
	debug.Logf("rpc: removed stale daemon lock file")
}

// Close closes the client's connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SetTimeout overrides the per-request timeout (default 30s).
func (c *Client) SetTimeout(timeout time.Duration) { c.timeout = timeout }

// SetDatabasePath records the database path this client expects the daemon
// to be serving, sent with every request so the daemon can reject a client
// routed to the wrong workspace.
func (c *Client) SetDatabasePath(dbPath string) { c.dbPath = dbPath }

// SetActor sets the actor recorded in the audit log for operations this
// client issues.
func (c *Client) SetActor(actor string) { c.actor = actor }

// Execute sends operation with args and waits for the daemon's response,
// using the current working directory for cwd-based database resolution.
func (c *Client) Execute(operation string, args interface{}) (*Response, error) {
	return c.ExecuteWithCwd(operation, args, "")
}

// ExecuteWithCwd is Execute with an explicit working directory.
func (c *Client) ExecuteWithCwd(operation string, args interface{}, cwd string) (*Response, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal args: %w", err)
	}

	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	req := Request{
		Operation:     operation,
		Args:          argsJSON,
		Actor:         c.actor,
		ClientVersion: ClientVersion,
		Cwd:           cwd,
		ExpectedDB:    c.dbPath,
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("rpc: set deadline: %w", err)
		}
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(reqJSON); err != nil {
		return nil, fmt.Errorf("rpc: write request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("rpc: write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("rpc: flush: %w", err)
	}

	reader := bufio.NewReader(c.conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("rpc: read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("rpc: unmarshal response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("rpc: operation %s failed: %s", operation, resp.Error)
	}
	return &resp, nil
}

// Ping verifies the daemon is alive and responsive.
func (c *Client) Ping() error {
	_, err := c.Execute(OpPing, nil)
	return err
}

// Health retrieves the daemon's health status, used both by TryConnect's
// liveness probe and by `coordctl state status --daemon`.
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.Execute(OpHealth, nil)
	if err != nil {
		// A health check that fails to even round-trip is treated the same
		// as "unhealthy" by the caller, so surface a HealthResponse instead
		// of forcing every call site to special-case the transport error.
		return &HealthResponse{Status: "unhealthy", Error: err.Error()}, nil
	}
	var health HealthResponse
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		return nil, fmt.Errorf("rpc: unmarshal health response: %w", err)
	}
	health.ClientVersion = ClientVersion
	return &health, nil
}

// Shutdown asks the daemon to exit gracefully.
func (c *Client) Shutdown() error {
	_, err := c.Execute(OpShutdown, nil)
	return err
}
