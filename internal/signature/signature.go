package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key is the normalized identity of one request: the same endpoint queried
// with the same parameters in any order yields the same Key. The hash is
// sha256 of the canonical form (scheme://host/path?sorted-query).
type Key struct {
	Host string
	Path string
	Hash string
}

// String returns the cache/loader key: fetch:<host>:<hash>.
func (k Key) String() string {
	return fmt.Sprintf("fetch:%s:%s", k.Host, k.Hash)
}

// Build normalizes rawURL plus any extra parameters into a Key. Extra
// parameters override same-named query parameters from the URL, matching
// how callers layer defaults (output format, paging) over a base endpoint.
func Build(rawURL string, extra map[string]string) (Key, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Key{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return Key{}, fmt.Errorf("url %q has no host", rawURL)
	}

	query := u.Query()
	for k, v := range extra {
		query.Set(k, v)
	}

	canonical := canonicalize(u, query)
	sum := sha256.Sum256([]byte(canonical))

	return Key{
		Host: u.Host,
		Path: u.Path,
		Hash: hex.EncodeToString(sum[:]),
	}, nil
}

// canonicalize produces a stable string form: lowercased scheme and host,
// path as-is, query pairs sorted by key then value.
func canonicalize(u *url.URL, query url.Values) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(u.Path)

	if len(query) == 0 {
		return b.String()
	}
	b.WriteString("?")

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	first := true
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			if !first {
				b.WriteString("&")
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
