package forum

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// visited tracks page URLs already fetched in a run.
type visited struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisited() *visited {
	return &visited{seen: make(map[string]struct{})}
}

// mark records rawURL and reports whether it was new.
func (v *visited) mark(rawURL string) bool {
	h := hashURL(CanonicalizeURL(rawURL))

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[h]; ok {
		return false
	}
	v.seen[h] = struct{}{}
	return true
}

func (v *visited) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// CanonicalizeURL normalizes a URL so that the same page reached through
// different spellings is fetched once:
//   - scheme and host are lowercased
//   - the fragment and default ports are removed
//   - query parameters are sorted
//   - a trailing slash is removed, except for the root
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, val := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(val))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16])
}

// allowedDomain reports whether host is one of domains or a subdomain of
// one. An empty list allows every host.
func allowedDomain(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
