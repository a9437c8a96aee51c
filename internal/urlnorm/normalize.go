// Package urlnorm normalizes URLs to a canonical form and derives the
// fixed-width fingerprint used as the Task Store's sole deduplication key.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// defaultTrackingParams are stripped from the query string whenever
// tracking-param stripping is on (always for Normalize, per
// Opts.StripTracking for NormalizeWithOpts);
// internal/config.URLNormalizeConfig.ExtraTrackingParams appends to this set
// at the call site.
var defaultTrackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
}

// Normalize returns the canonical form of rawURL: lowercase scheme and
// host, http upgraded to https, default port stripped, fragment dropped,
// tracking params removed, remaining query params sorted, path cleaned and
// stripped of a trailing slash (except root). Tracking-param stripping is
// always on; callers that need url_normalize.strip_tracking_params to be
// togglable go through NormalizeWithOpts instead.
func Normalize(rawURL string, extraTracking ...string) (string, error) {
	return NormalizeWithOpts(rawURL, Opts{StripTracking: true, ExtraTracking: extraTracking})
}

// Opts parameterizes NormalizeWithOpts per the url_normalize.* config
// section: StripTracking toggles the default+extra tracking-param removal
// pass, ExtraTracking appends caller-configured params to the default set.
type Opts struct {
	StripTracking bool
	ExtraTracking []string
}

// NormalizeWithOpts is Normalize with the url_normalize.* config options
// applied, for callers (internal/store) that need the toggle to be live
// rather than always-on.
func NormalizeWithOpts(rawURL string, opts Opts) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("urlnorm: %q has no host", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}
	if scheme == "" {
		scheme = "https"
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && defaultPorts[scheme] != port {
		host = host + ":" + port
	}

	tracking := map[string]bool{}
	if opts.StripTracking {
		tracking = make(map[string]bool, len(defaultTrackingParams)+len(opts.ExtraTracking))
		for k := range defaultTrackingParams {
			tracking[k] = true
		}
		for _, k := range opts.ExtraTracking {
			tracking[strings.ToLower(k)] = true
		}
	}

	query := buildCleanQuery(u.Query(), tracking)
	p := normalizePath(u.Path)

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     p,
		RawQuery: query,
	}
	return out.String(), nil
}

func buildCleanQuery(values url.Values, tracking map[string]bool) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if tracking[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vals := values[k]
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned != "/" {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// Fingerprint hashes the already-normalized URL into a fixed-width hex
// digest suitable for a unique index column. It is not cryptographically
// meaningful; it exists purely for storage-efficient uniqueness.
func Fingerprint(normalized string) string {
	sum := xxhash.Sum64String(normalized)
	return fmt.Sprintf("%016x", sum)
}

// Hash returns the full SHA-256 hex digest of the normalized URL, for
// external reporting or debugging where collision resistance matters more
// than storage footprint.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ExtractHost returns the lowercased hostname (no port) of rawURL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("urlnorm: %q has no host", rawURL)
	}
	return strings.ToLower(u.Hostname()), nil
}
