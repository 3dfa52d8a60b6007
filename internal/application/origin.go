package application

import (
	"net/url"
	"strings"
)

// originAllowed reports whether a browser Origin header is covered by the
// allow-list. An empty list allows every origin. Entries may be a bare host
// ("shop.example.com", matching that host and its subdomains), a host with
// port, or a full origin ("https://shop.example.com", matched exactly).
func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	hostPort := strings.ToLower(u.Host)

	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "://") {
			eu, err := url.Parse(strings.TrimSuffix(entry, "/"))
			if err == nil && eu.Scheme == strings.ToLower(u.Scheme) && strings.ToLower(eu.Host) == hostPort {
				return true
			}
			continue
		}

		if strings.Contains(entry, ":") {
			if entry == hostPort {
				return true
			}
			continue
		}

		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}

	return false
}
