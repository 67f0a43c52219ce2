package scratchclient

import (
	"fmt"
	"net/url"
	"strings"
)

// normalizeBaseURL trims whitespace/trailing slashes and validates that raw
// is a bare http(s) origin, with no embedded user info, query, or fragment.
func normalizeBaseURL(raw string) (string, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	if baseURL == "" {
		return "", fmt.Errorf("scratchclient: base URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("scratchclient: %q is not a valid base URL", raw)
	}
	if parsed.User != nil {
		return "", fmt.Errorf("scratchclient: base URL must not include user info")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("scratchclient: base URL scheme must be http or https")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", fmt.Errorf("scratchclient: base URL must not include query or fragment")
	}

	return baseURL, nil
}
