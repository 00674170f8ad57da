package validate

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/jun/gophdeck/internal/deckerr"
)

// DefaultTrustedImageDomains are the image hosts accepted without an override.
var DefaultTrustedImageDomains = []string{
	"unsplash.com",
	"pexels.com",
	"pixabay.com",
	"wikimedia.org",
	"googleusercontent.com",
	"gstatic.com",
	"cloudinary.com",
	"imgur.com",
}

// ValidateImageURL checks raw against the image policy and returns the URL to
// use. http is upgraded to https. warning is non-empty when the URL passes but
// points at a host the remote renderer is unlikely to reach.
func (v *Validator) ValidateImageURL(raw string, allowUntrusted bool) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", deckerr.InvalidImageURL(raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", "", deckerr.InvalidImageURL(raw, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", deckerr.InvalidImageURL(raw, fmt.Errorf("missing host"))
	}
	if strings.EqualFold(u.Scheme, "http") && u.Port() == "80" {
		// :80 would point the https URL at a plaintext port.
		u.Host = u.Hostname()
		if strings.Contains(u.Host, ":") {
			u.Host = "[" + u.Host + "]"
		}
	}
	u.Scheme = "https"

	var warning string
	if isPrivateHost(host) {
		warning = fmt.Sprintf("image host %q is not publicly reachable", host)
	}

	if !allowUntrusted && !v.trusted(host) {
		return "", "", deckerr.UntrustedImageDomain(host)
	}
	return u.String(), warning, nil
}

func (v *Validator) trusted(host string) bool {
	for _, domain := range v.trustedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isPrivateHost(host string) bool {
	if host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return true
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}
