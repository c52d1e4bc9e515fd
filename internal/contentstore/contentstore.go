// Package contentstore uploads images and metadata documents to
// content-addressed storage and translates locators to gateway URLs.
package contentstore

import (
	"context"
	"errors"
	"strings"
)

// Scheme prefixes every locator returned by Upload.
const Scheme = "ipfs://"

// DefaultGateway is used when no gateway is configured.
const DefaultGateway = "https://gateway.pinata.cloud/ipfs"

// ErrNotFound is returned by Fetch for unknown content.
var ErrNotFound = errors.New("content not found")

// Store is content-addressed storage. Upload returns "ipfs://<cid>".
type Store interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// CID extracts the content id from a locator: "ipfs://<cid>", a gateway
// URL containing "/ipfs/<cid>", or a bare cid.
func CID(locator string) string {
	switch {
	case strings.HasPrefix(locator, Scheme):
		return strings.TrimPrefix(locator, Scheme)
	case strings.Contains(locator, "/ipfs/"):
		rest := locator[strings.Index(locator, "/ipfs/")+len("/ipfs/"):]
		if i := strings.IndexAny(rest, "/?#"); i >= 0 {
			rest = rest[:i]
		}
		return rest
	default:
		return locator
	}
}

// Gateway translates locators into fetchable HTTP URLs.
type Gateway struct {
	base string
}

// NewGateway builds a Gateway for base, e.g. "https://ipfs.io/ipfs".
// An empty base selects DefaultGateway.
func NewGateway(base string) Gateway {
	if base == "" {
		base = DefaultGateway
	}
	return Gateway{base: strings.TrimRight(base, "/")}
}

// URL maps "ipfs://<cid>" and bare cids to "<gateway>/<cid>". Locators
// with any other scheme (http, ar, data) pass through unchanged; empty
// input yields "".
func (g Gateway) URL(locator string) string {
	locator = strings.TrimSpace(locator)
	switch {
	case locator == "":
		return ""
	case strings.HasPrefix(locator, Scheme):
		return g.base + "/" + strings.TrimPrefix(locator, Scheme)
	case hasScheme(locator):
		return locator
	default:
		return g.base + "/" + locator
	}
}

// hasScheme reports whether s starts with a URI scheme followed by ':'.
func hasScheme(s string) bool {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return false
	}
	for j, c := range s[:i] {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
