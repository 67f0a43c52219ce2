// Package agentid derives a stable agent identity for the current process
// by walking its ancestry to find the outermost orchestrator session:
// agents launched by the same top-level "claude" process share an
// identity, while two concurrent orchestrator invocations get distinct
// identities. Grounded on BeadsLog's preference for os-level introspection
// over a generated UUID when a stable identity is derivable from context
// (e.g. the git config user.name / hostname fallback chain in
// internal/config.GetActor). The ancestry walk reads /proc directly; on
// platforms without /proc, Derive falls back to the immediate parent PID.
package agentid

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// processInfo is the minimal ancestry fact this package needs per process.
type processInfo struct {
	pid  int
	ppid int
	comm string
}

// Derive walks the process ancestry starting at the current process and
// returns the PID of the outermost ancestor whose command name matches
// namePredicate (normally "does this command name contain 'claude'?"), formatted as
// "agent-<pid>". If no ancestor matches, or ancestry cannot be read (e.g.
// non-Linux without /proc), Derive falls back to "agent-<ppid>" using the
// immediate parent PID, and finally to "agent-<pid>" using the current
// process's own PID if even that is unavailable.
func Derive(namePredicate func(comm string) bool) string {
	pid := os.Getpid()

	chain, err := ancestryChain(pid)
	if err != nil || len(chain) == 0 {
		if ppid := os.Getppid(); ppid > 0 {
			return fmt.Sprintf("agent-%d", ppid)
		}
		return fmt.Sprintf("agent-%d", pid)
	}

	outermost := -1
	for i, p := range chain {
		if namePredicate(p.comm) {
			outermost = i
		}
	}
	if outermost >= 0 {
		return fmt.Sprintf("agent-%d", chain[outermost].pid)
	}

	return fmt.Sprintf("agent-%d", os.Getppid())
}

// IsClaudeProcess is the default namePredicate: matches any command name
// that contains "claude", since orchestrator builds sometimes prefix or
// suffix the binary name with a version or platform tag.
func IsClaudeProcess(comm string) bool {
	return strings.Contains(comm, "claude")
}

// ancestryChain returns [self, parent, grandparent, ...] by reading
// /proc/<pid>/stat, stopping at pid 1 or on the first unreadable entry.
func ancestryChain(pid int) ([]processInfo, error) {
	var chain []processInfo
	seen := map[int]bool{}

	for pid > 1 && !seen[pid] {
		seen[pid] = true
		info, err := readProcessInfo(pid)
		if err != nil {
			return chain, err
		}
		chain = append(chain, info)
		pid = info.ppid
	}

	return chain, nil
}

// readProcessInfo reads /proc/<pid>/stat and extracts comm and ppid. The
// comm field is parenthesized and may itself contain spaces/parens, so this
// parses from the last ')' rather than splitting naively on spaces.
func readProcessInfo(pid int) (processInfo, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return processInfo{}, err
	}

	line := strings.TrimSpace(string(data))
	openParen := strings.IndexByte(line, '(')
	closeParen := strings.LastIndexByte(line, ')')
	if openParen < 0 || closeParen < 0 || closeParen <= openParen {
		return processInfo{}, fmt.Errorf("agentid: malformed /proc/%d/stat", pid)
	}

	comm := line[openParen+1 : closeParen]
	// /proc/<pid>/stat truncates comm at 15 bytes (TASK_COMM_LEN-1); when it
	// looks truncated, prefer the untruncated argv[0] basename if readable.
	if len(comm) == 15 {
		if full, err := commFromCmdline(pid); err == nil && full != "" {
			comm = full
		}
	}
	rest := strings.Fields(line[closeParen+1:])
	// rest[0] is state, rest[1] is ppid per proc(5).
	if len(rest) < 2 {
		return processInfo{}, fmt.Errorf("agentid: truncated /proc/%d/stat", pid)
	}
	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return processInfo{}, fmt.Errorf("agentid: parsing ppid for pid %d: %w", pid, err)
	}

	return processInfo{pid: pid, ppid: ppid, comm: comm}, nil
}

// commFromCmdline is a fallback used when /proc/<pid>/stat's truncated comm
// field (15 bytes) isn't distinctive enough; reads the full argv[0] instead.
func commFromCmdline(pid int) (string, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanLines)
	if scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\x00")
		if len(fields) > 0 {
			parts := strings.Split(fields[0], "/")
			return parts[len(parts)-1], nil
		}
	}
	return "", fmt.Errorf("agentid: empty cmdline for pid %d", pid)
}
