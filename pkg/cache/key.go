package cache

import (
	"strings"
)

// Key is a normalized request URI identifying one cached render.
// Keys are unique within their partition.
type Key string

// Partition groups keys by origin host.
type Partition string

// String returns the key text.
func (k Key) String() string {
	return string(k)
}

// Partition returns the partition the key belongs to.
func (k Key) Partition() Partition {
	return PartitionOf(k)
}

// String returns the partition id.
func (p Partition) String() string {
	return string(p)
}

// escapedFragment is the canonical crawl-fragment query marker.
const escapedFragment = "_escaped_fragment_"

// hashbangRewrites are applied in order.
var hashbangRewrites = []struct {
	from string
	to   string
}{
	{"%23%21", "?" + escapedFragment + "="},
	{"%23!", "?" + escapedFragment + "="},
	{"#!", "?" + escapedFragment + "="},
}

// uiParams are query parameters that only select client-side tabs.
var uiParams = map[string]bool{
	"tab":         true,
	"activeTab":   true,
	"selectedTab": true,
}

// Normalize canonicalizes a raw request path into a cache key.
//
// The leading separator is removed, alternate spellings of the crawl
// fragment marker are rewritten to "_escaped_fragment_=", and tab selector
// parameters are dropped. Normalize is total and idempotent.
//
// Example:
//
//	/http://example.com/app?tab=2#!/items -> http://example.com/app?_escaped_fragment_=/items
//
// The steps run in a fixed order; none of them can produce input that an
// earlier step would rewrite.
func Normalize(rawPath string) Key {
	// a run of leading separators counts as one so that Normalize(Normalize(x)) == Normalize(x)
	s := strings.TrimLeft(rawPath, "/")

	for _, rw := range hashbangRewrites {
		s = strings.ReplaceAll(s, rw.from, rw.to)
	}
	s = joinFragmentMarker(s)
	s = strings.ReplaceAll(s, escapedFragment+"&", escapedFragment+"=&")
	s = dropUIParams(s)
	if strings.HasSuffix(s, escapedFragment) {
		s += "="
	}

	return Key(s)
}

// joinFragmentMarker turns "?_escaped_fragment_" into "&_escaped_fragment_"
// when a query string has already started.
func joinFragmentMarker(s string) string {
	first := strings.IndexByte(s, '?')
	if first < 0 {
		return s
	}
	rest := strings.ReplaceAll(s[first+1:], "?"+escapedFragment, "&"+escapedFragment)
	return s[:first+1] + rest
}

// dropUIParams removes tab selector parameters from the query string, which
// starts at the first '?' and ends at the first '#'. The key is returned
// unchanged when none are present.
func dropUIParams(s string) string {
	q := strings.IndexByte(s, '?')
	h := strings.IndexByte(s, '#')
	if q < 0 || (h >= 0 && h < q) {
		return s
	}
	end := len(s)
	if h >= 0 {
		end = h
	}

	params := strings.Split(s[q+1:end], "&")
	kept := params[:0:0]
	for _, p := range params {
		name, _, _ := strings.Cut(p, "=")
		if uiParams[name] {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == len(params) {
		return s
	}

	if len(kept) == 0 {
		return s[:q] + s[end:]
	}
	return s[:q+1] + strings.Join(kept, "&") + s[end:]
}

// PartitionOf returns the host portion of a key: the scheme prefix is
// removed and the remainder is cut at the first '/', '?' or '#'.
func PartitionOf(key Key) Partition {
	s := string(key)
	if rest, ok := strings.CutPrefix(s, "https://"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "http://"); ok {
		s = rest
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return Partition(s)
}
