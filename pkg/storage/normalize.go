package storage

import (
	"net/url"
	"strings"
)

// NormalizeProductURL returns the canonical listing URL for asin on the
// marketplace raw points to, e.g. https://www.amazon.com/dp/B000000000.
// raw is returned trimmed when it has no host.
func NormalizeProductURL(raw, asin string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || asin == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(raw, "https://")
	}
	host := strings.ToLower(u.Hostname())
	if m, ok := Marketplace(host); ok && m == host {
		host = "www." + host
	}
	return (&url.URL{Scheme: "https", Host: host, Path: "/dp/" + strings.ToUpper(asin)}).String()
}
