package scratchclient

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// urlEnvVar takes precedence over every candidate and over the cache.
const urlEnvVar = "COORDCTL_SCRATCH_URL"

// urlCacheTTL is how long a successfully probed base URL is trusted before
// re-probing.
const urlCacheTTL = time.Hour

// DefaultCandidates is the ordered list of base URLs tried when no explicit
// URL is configured.
var DefaultCandidates = []string{
	"http://localhost:8080",
	"https://decomp.me",
}

type urlCacheFile struct {
	BaseURL   string    `toml:"base_url"`
	ProbedAt  time.Time `toml:"probed_at"`
}

// DetectBaseURL resolves the scratch service's base URL: the env var if
// set, else the cache if still fresh, else the first reachable candidate
// (probed via GET /api/compiler), writing the result back to the cache.
func DetectBaseURL(ctx context.Context, httpClient *http.Client, cacheDir string, candidates []string) (string, error) {
	if v := os.Getenv(urlEnvVar); v != "" {
		return normalizeBaseURL(v)
	}

	cachePath := filepath.Join(cacheDir, "scratch_url_cache.toml")
	if cached, ok := readURLCache(cachePath); ok {
		return cached, nil
	}

	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	var lastErr error
	for _, candidate := range candidates {
		base, err := normalizeBaseURL(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		if probe(ctx, httpClient, base) {
			writeURLCache(cachePath, base)
			return base, nil
		}
	}

	if lastErr == nil {
		lastErr = errNoReachableCandidate
	}
	return "", lastErr
}

func probe(ctx context.Context, httpClient *http.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/compiler", nil)
	if err != nil {
		return false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}

func readURLCache(path string) (string, bool) {
	var cache urlCacheFile
	if _, err := toml.DecodeFile(path, &cache); err != nil {
		return "", false
	}
	if time.Since(cache.ProbedAt) > urlCacheTTL {
		return "", false
	}
	return cache.BaseURL, cache.BaseURL != ""
}

func writeURLCache(path string, baseURL string) {
	cache := urlCacheFile{BaseURL: baseURL, ProbedAt: time.Now()}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_ = toml.NewEncoder(f).Encode(cache)
}
