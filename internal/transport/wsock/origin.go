// Package wsock normalizes and validates HTTP origins for websocket upgrades
// to enforce the configured access control.
package wsock

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a socket. Requests
// without an Origin header come from non-browser peers and are accepted.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	normalized, allowAll := normalizeOrigins(origins)
	policy := originPolicy{
		allowAll: allowAll,
		allowed:  make(map[string]struct{}, len(normalized)),
	}
	for _, origin := range normalized {
		policy.allowed[origin] = struct{}{}
	}
	return policy
}

func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p originPolicy) allows(originHeader string) bool {
	if originHeader == "" || p.allowAll {
		return true
	}

	normalizedOrigin, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	_, exists := p.allowed[normalizedOrigin]
	return exists
}

func (p originPolicy) check(r *http.Request) bool {
	if p.allows(r.Header.Get("Origin")) {
		return true
	}

	log.Printf("Blocked websocket connection from disallowed origin: %q", r.Header.Get("Origin"))
	return false
}
