package utils

import (
	"net/url"
	"strings"
)

// NormalizeQR extracts the canonical mold code from a scanned QR payload.
// Labels in the field carry either the bare code ("M-0042") or a URL that
// wraps it ("https://app.example.com/molds/M-0042", possibly with a ?code=
// query parameter).  The function strips the URL wrapping and returns the
// identifier token; an empty result means the payload carried no code.
func NormalizeQR(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		// A ?code= query parameter wins over the path.
		if code := strings.TrimSpace(u.Query().Get("code")); code != "" {
			return code
		}
		// Otherwise take the last non-empty path segment.
		segments := strings.Split(u.Path, "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if seg := strings.TrimSpace(segments[i]); seg != "" {
				return seg
			}
		}
		return ""
	}
	return s
}
