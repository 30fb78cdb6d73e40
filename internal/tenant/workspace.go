package tenant

import (
	"net"
	"strings"
)

// Reserved first labels that never name a workspace.
var reservedLabels = map[string]bool{
	"www":   true,
	"app":   true,
	"admin": true,
	"api":   true,
}

// Multi-level hosting-platform suffixes. A host under one of these needs
// an extra label before the first label can be a workspace, e.g.
// acme.fleetdesk.vercel.app has four labels and resolves to "acme",
// while fleetdesk.vercel.app has three and resolves to nothing.
var platformSuffixes = []string{
	"vercel.app",
	"netlify.app",
	"fly.dev",
	"onrender.com",
}

// ResolveWorkspace derives a workspace identifier from a request host and
// an optional explicit workspace query parameter. It returns "" when no
// workspace can be derived. The function is pure: no I/O, no store access.
//
// An explicit parameter wins unconditionally; it is used for local
// development and admin-originated links.
func ResolveWorkspace(host, explicit string) string {
	if ws := strings.ToLower(strings.TrimSpace(explicit)); ws != "" {
		return ws
	}

	hostname := stripPort(host)
	if hostname == "" || isLoopback(hostname) {
		return ""
	}

	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	labels := strings.Split(hostname, ".")
	if len(labels) < 3 {
		return ""
	}

	first := labels[0]
	if reservedLabels[first] {
		return ""
	}

	if suffix := matchPlatformSuffix(hostname); suffix != "" {
		// The platform suffix consumes two labels and the deployment
		// name a third, so a workspace needs at least four.
		if len(labels) >= 4 {
			return first
		}
		return ""
	}

	return first
}

// stripPort removes an optional :port from a host header value.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// isLoopback reports whether the hostname is local development traffic
// with no subdomain semantics.
func isLoopback(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	// Bare single-label hosts (machine names) carry no workspace.
	return !strings.Contains(hostname, ".")
}

func matchPlatformSuffix(hostname string) string {
	for _, suffix := range platformSuffixes {
		if strings.HasSuffix(hostname, "."+suffix) {
			return suffix
		}
	}
	return ""
}
