package storage

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Marketplace returns the registrable domain of a listing host or URL,
// e.g. "https://smile.amazon.co.uk/dp/X" -> "amazon.co.uk".
// It reports false for inputs that carry no domain.
func Marketplace(hostOrURL string) (string, bool) {
	s := strings.TrimSpace(hostOrURL)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".") {
		return "", false
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}
