// Package scratchclient implements a REST client for the remote scratch
// (decompilation sandbox) service: create, read, update, claim, compile,
// decompile, fork, family, search, and the compiler/preset catalog
// endpoints. Grounded on r3e-network-service_layer's
// infrastructure/httputil/baseurl.go (base-URL normalization) and
// infrastructure/resilience/retry.go (exponential backoff with jitter),
// plus BeadsLog's per-agent sidecar file naming convention for isolating
// concurrent agents' credentials.
package scratchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
)

// Client drives the remote scratch service on behalf of one agent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	agentID    string
	configDir  string
	retryCfg   RetryConfig
	session    *session
}

// New constructs a Client for agentID, auto-detecting the base URL among
// candidates (or DefaultCandidates if nil) and loading any persisted
// cookies/claim tokens from configDir.
func New(ctx context.Context, agentID, configDir string, candidates []string) (*Client, error) {
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar, Timeout: 30 * time.Second}

	baseURL, err := DetectBaseURL(ctx, httpClient, configDir, candidates)
	if err != nil {
		return nil, err
	}

	sess := loadSession(configDir, agentID)
	if parsed, err := url.Parse(baseURL); err == nil {
		cookies := make([]*http.Cookie, 0, len(sess.Cookies))
		for name, value := range sess.Cookies {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
		jar.SetCookies(parsed, cookies)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		agentID:    agentID,
		configDir:  configDir,
		retryCfg:   DefaultRetryConfig(),
		session:    sess,
	}, nil
}

// persistCookies saves the cf_clearance cookie (and any session cookie) so
// the next invocation by this agent skips re-authenticating.
func (c *Client) persistCookies() {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, cookie := range c.httpClient.Jar.Cookies(parsed) {
		c.session.Cookies[cookie.Name] = cookie.Value
	}
	_ = c.session.save(c.configDir, c.agentID)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (*http.Response, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	var resp *http.Response
	err := retry(ctx, c.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody.Bytes()))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		resp = r
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return fmt.Errorf("scratchclient: %s %s: server error %d", method, path, resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return nil, errs.RemoteAPI(err, "scratchclient: %s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	c.persistCookies()

	if resp.StatusCode == http.StatusForbidden {
		return resp, errs.Ownership(nil, "scratchclient: %s %s: 403 forbidden (claim lost)", method, path)
	}
	if resp.StatusCode >= 400 {
		return resp, errs.RemoteAPI(nil, "scratchclient: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, errs.RemoteAPI(err, "scratchclient: decode %s %s response", method, path)
		}
	}
	return resp, nil
}

// Create calls POST /api/scratch.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Scratch, error) {
	var scratch Scratch
	if _, err := c.do(ctx, http.MethodPost, "/api/scratch", req, &scratch); err != nil {
		return nil, err
	}
	if scratch.ClaimToken != "" {
		c.session.ClaimTokens[scratch.Slug] = scratch.ClaimToken
		_ = c.session.save(c.configDir, c.agentID)
	}
	return &scratch, nil
}

// Get calls GET /api/scratch/{slug}.
func (c *Client) Get(ctx context.Context, slug string) (*Scratch, error) {
	var scratch Scratch
	if _, err := c.do(ctx, http.MethodGet, "/api/scratch/"+slug, nil, &scratch); err != nil {
		return nil, err
	}
	return &scratch, nil
}

// Update calls PATCH /api/scratch/{slug}.
func (c *Client) Update(ctx context.Context, slug string, req UpdateRequest) (*Scratch, error) {
	var scratch Scratch
	if _, err := c.do(ctx, http.MethodPatch, "/api/scratch/"+slug, req, &scratch); err != nil {
		return nil, err
	}
	return &scratch, nil
}

// Claim calls POST /api/scratch/{slug}/claim using the token persisted from
// Create, or an explicit token if provided.
func (c *Client) Claim(ctx context.Context, slug, token string) error {
	if token == "" {
		token = c.session.ClaimTokens[slug]
	}
	_, err := c.do(ctx, http.MethodPost, "/api/scratch/"+slug+"/claim", ClaimRequest{Token: token}, nil)
	return err
}

// ClaimWithRetry calls Claim, and on a 403 ownership error re-claims with
// the saved token once before giving up.
func (c *Client) ClaimWithRetry(ctx context.Context, slug string) error {
	err := c.Claim(ctx, slug, "")
	if err == nil {
		return nil
	}
	if ce, ok := err.(*errs.CoordError); ok && ce.Kind == errs.KindOwnership {
		return c.Claim(ctx, slug, c.session.ClaimTokens[slug])
	}
	return err
}

// Compile calls GET /api/scratch/{slug}/compile (records the score) or, when
// overrides is non-nil, POST with overrides (does not record the score).
func (c *Client) Compile(ctx context.Context, slug string, overrides *CompileOverrides) (*CompileResult, error) {
	var result CompileResult
	if overrides == nil {
		_, err := c.do(ctx, http.MethodGet, "/api/scratch/"+slug+"/compile", nil, &result)
		return &result, err
	}
	_, err := c.do(ctx, http.MethodPost, "/api/scratch/"+slug+"/compile", overrides, &result)
	return &result, err
}

// Decompile calls POST /api/scratch/{slug}/decompile.
func (c *Client) Decompile(ctx context.Context, slug string, req DecompileRequest) (*CompileResult, error) {
	var result CompileResult
	_, err := c.do(ctx, http.MethodPost, "/api/scratch/"+slug+"/decompile", req, &result)
	return &result, err
}

// Fork calls POST /api/scratch/{slug}/fork, returning a new Scratch this
// agent owns.
func (c *Client) Fork(ctx context.Context, slug string) (*Scratch, error) {
	var forked Scratch
	if _, err := c.do(ctx, http.MethodPost, "/api/scratch/"+slug+"/fork", nil, &forked); err != nil {
		return nil, err
	}
	if forked.ClaimToken != "" {
		c.session.ClaimTokens[forked.Slug] = forked.ClaimToken
		_ = c.session.save(c.configDir, c.agentID)
	}
	return &forked, nil
}

// Family calls GET /api/scratch/{slug}/family.
func (c *Client) Family(ctx context.Context, slug string) ([]Scratch, error) {
	var family []Scratch
	_, err := c.do(ctx, http.MethodGet, "/api/scratch/"+slug+"/family", nil, &family)
	return family, err
}

// Search calls GET /api/scratch with the given filters.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	q := url.Values{}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Platform != "" {
		q.Set("platform", params.Platform)
	}
	if params.Compiler != "" {
		q.Set("compiler", params.Compiler)
	}
	if params.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(params.PageSize))
	}

	var result SearchResult
	_, err := c.do(ctx, http.MethodGet, "/api/scratch?"+q.Encode(), nil, &result)
	return &result, err
}

// Compilers calls GET /api/compiler.
func (c *Client) Compilers(ctx context.Context) ([]Compiler, error) {
	var compilers []Compiler
	_, err := c.do(ctx, http.MethodGet, "/api/compiler", nil, &compilers)
	return compilers, err
}

// BaseURL returns the detected remote service origin, used to build the
// "Scratch: <url>" line in commit messages.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Presets calls GET /api/preset.
func (c *Client) Presets(ctx context.Context) ([]Preset, error) {
	var presets []Preset
	_, err := c.do(ctx, http.MethodGet, "/api/preset", nil, &presets)
	return presets, err
}
