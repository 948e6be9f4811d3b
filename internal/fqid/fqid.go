// Package fqid handles fully-qualified identifiers: full URLs used as
// primary keys that name both an entity and the node that owns it.
package fqid

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Normalize decodes a raw FQID captured from a URL path and brings it to
// canonical form: percent-escapes resolved, trailing slash trimmed, and a
// collapsed scheme separator ("https:/host") repaired. Route wildcards
// swallow the double slash of an unencoded FQID, so the repair is needed
// whenever callers pass identifiers raw instead of URL-encoded.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if dec, err := url.PathUnescape(s); err == nil {
		s = dec
	}
	s = strings.TrimRight(s, "/")
	for _, scheme := range []string{"https", "http"} {
		prefix := scheme + ":/"
		if strings.HasPrefix(s, prefix) && !strings.HasPrefix(s, scheme+"://") {
			s = scheme + "://" + s[len(prefix):]
			break
		}
	}
	return s
}

// Mint builds a new FQID under an author: <author>/<suffix>/<uuid>.
func Mint(authorFQID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(authorFQID, "/"), suffix, uuid.New().String())
}

// IsLocal reports whether the FQID's host matches the node's site URL.
func IsLocal(fqid, siteURL string) bool {
	f, err := url.Parse(Normalize(fqid))
	if err != nil || f.Host == "" {
		return false
	}
	s, err := url.Parse(siteURL)
	if err != nil {
		return false
	}
	return f.Host == s.Host
}

// HostBase returns the scheme://host prefix of an FQID, used to match an
// identifier to the Node that owns it. Empty when the FQID is not an
// absolute URL.
func HostBase(fqid string) string {
	u, err := url.Parse(Normalize(fqid))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Serial returns the last path segment of an FQID: the uuid or serial the
// owning node appended when minting it.
func Serial(fqid string) string {
	s := Normalize(fqid)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Collection suffixes that may trail an FQID in a resource path.
var collectionSuffixes = []string{
	"comments", "likes", "images", "inbox",
	"friends", "entries", "commented", "liked",
}

// SplitResource separates a wildcard path capture into the FQID part and a
// trailing collection keyword. FQIDs contain slashes themselves, so the
// keyword is only recognized as the final path segment:
//
//	"https://n/api/entries/1/comments" -> ("https://n/api/entries/1", "comments")
//	"https://n/api/entries/1"          -> ("https://n/api/entries/1", "")
func SplitResource(raw string) (id, sub string) {
	s := Normalize(raw)
	for _, kw := range collectionSuffixes {
		if strings.HasSuffix(s, "/"+kw) {
			return strings.TrimRight(s[:len(s)-len(kw)-1], "/"), kw
		}
	}
	return s, ""
}
