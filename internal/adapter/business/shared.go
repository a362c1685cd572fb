// Package business adapts third-party business directories (Google Places,
// Yelp, Geoapify) to domain.BusinessProvider.
package business

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	maxBodySize = 1 << 20 // 1MB
	pageSize    = 20

	// yelpMaxRadius and the Geoapify bounds are the upstream limits in meters.
	yelpMaxRadius     = 40000
	geoapifyMinRadius = 100
	geoapifyMaxRadius = 40000

	// ImageProxyPath is where photo URLs are rewritten to.
	ImageProxyPath = "/api/image-proxy"
)

// getJSON performs a GET and decodes a 2xx JSON body into out.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// slug lower-cases s and collapses runs of non-alphanumerics into "-".
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// ProxyPhotoURL rewrites an upstream image URL to go through the image proxy.
func ProxyPhotoURL(upstream string) string {
	if upstream == "" {
		return ""
	}
	return ImageProxyPath + "?url=" + url.QueryEscape(upstream)
}

// ProxyPhotoRef points at the image proxy by photo reference, so the
// provider key never appears in client-visible URLs.
func ProxyPhotoRef(ref string) string {
	if ref == "" {
		return ""
	}
	return ImageProxyPath + "?ref=" + url.QueryEscape(ref)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// parseOffset reads a numeric cursor. Anything unparsable or negative is 0.
func parseOffset(c string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// coord formats a coordinate without exponent notation.
func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// searchTerm is the free-text query, then the category text, then "business".
func searchTerm(term, category string) string {
	if t := strings.TrimSpace(term); t != "" {
		return t
	}
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return "business"
}
