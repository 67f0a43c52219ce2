package scratchclient

import (
	"net/http/cookiejar"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// session is the per-agent persisted state: cookies (including
// cf_clearance, if the remote sits behind Cloudflare) and claim tokens
// keyed by scratch slug. Persisted as a TOML sidecar file rather than
// folded into the main config.
type session struct {
	Cookies        map[string]string `toml:"cookies"`
	ClaimTokens    map[string]string `toml:"claim_tokens"`
}

func newSession() *session {
	return &session{Cookies: map[string]string{}, ClaimTokens: map[string]string{}}
}

func sessionPath(configDir, agentID string) string {
	return filepath.Join(configDir, "scratch_session_"+agentID+".toml")
}

func loadSession(configDir, agentID string) *session {
	s := newSession()
	path := sessionPath(configDir, agentID)
	if _, err := toml.DecodeFile(path, s); err != nil {
		return newSession()
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	if s.ClaimTokens == nil {
		s.ClaimTokens = map[string]string{}
	}
	return s
}

func (s *session) save(configDir, agentID string) error {
	path := sessionPath(configDir, agentID)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return toml.NewEncoder(f).Encode(s)
}

// newCookieJar builds an http.CookieJar seeded from the session's persisted
// cookies (no public constructor accepts a seed, so we use PublicSuffixList
// nil and SetCookies after construction at the call site).
func newCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(nil)
}
