// Package security provides the validation shared by content sources and the
// HTTP server.
package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidContentPath is returned for content paths that could escape the
// content root.
var ErrInvalidContentPath = errors.New("invalid content path")

// ValidateHTTPURL guards remote content fetches against SSRF. It rejects
// non-http schemes and, unless allowPrivate is set, localhost, loopback,
// private, link-local and unspecified addresses.
func ValidateHTTPURL(rawURL string, allowPrivate bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a host")
	}
	if allowPrivate {
		return nil
	}

	switch strings.ToLower(host) {
	case "localhost", "localhost.localdomain":
		return fmt.Errorf("requests to localhost are not allowed")
	}

	// Hostnames are not resolved here; only literal IPs are checked.
	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}
	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("requests to loopback addresses are not allowed")
	case ip.IsPrivate():
		return fmt.Errorf("requests to private network addresses are not allowed")
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("requests to link-local addresses are not allowed")
	case ip.IsUnspecified():
		return fmt.Errorf("requests to unspecified addresses are not allowed")
	}
	return nil
}

// ValidateContentPath checks that p is a clean, relative, slash-separated path
// to a Markdown file, e.g. "assets/md/getting-started/setting-up.md".
func ValidateContentPath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: empty", ErrInvalidContentPath)
	case strings.HasPrefix(p, "/"), strings.Contains(p, `\`):
		return fmt.Errorf("%w: %q must be relative and slash-separated", ErrInvalidContentPath, p)
	case path.Clean(p) != p:
		return fmt.Errorf("%w: %q is not clean", ErrInvalidContentPath, p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("%w: %q escapes the content root", ErrInvalidContentPath, p)
	case path.Ext(p) != ".md":
		return fmt.Errorf("%w: %q is not a markdown file", ErrInvalidContentPath, p)
	}
	return nil
}
