package app

import (
	"net"
	"net/url"
	"strings"
)

// originRule is one compiled allowed_origins entry, e.g. "https://*.soma.rw"
// or "localhost:*". An empty scheme accepts any scheme.
type originRule struct {
	scheme    string
	host      string
	subdomain bool
	port      string
}

func parseOriginRule(raw string) (originRule, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "*" {
		return originRule{}, false
	}
	var r originRule
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		r.scheme, raw = scheme, rest
	}
	raw = strings.TrimSuffix(raw, "/")
	if host, port, err := net.SplitHostPort(raw); err == nil {
		r.host, r.port = host, port
	} else {
		r.host = raw
	}
	if rest, ok := strings.CutPrefix(r.host, "*."); ok {
		r.host, r.subdomain = rest, true
	}
	return r, r.host != ""
}

func (r originRule) allows(origin string) bool {
	u, err := url.Parse(strings.ToLower(origin))
	if err != nil || u.Host == "" {
		return false
	}
	if r.scheme != "" && r.scheme != u.Scheme {
		return false
	}
	if r.port != "*" && r.port != u.Port() {
		return false
	}
	if r.subdomain {
		return strings.HasSuffix(u.Hostname(), "."+r.host)
	}
	return u.Hostname() == r.host
}

// originAllowed builds the cors AllowOriginFunc. Nil means every origin passes.
func originAllowed(origins []string) func(string) bool {
	rules := make([]originRule, 0, len(origins))
	for _, o := range origins {
		if r, ok := parseOriginRule(o); ok {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return func(origin string) bool {
		for _, r := range rules {
			if r.allows(origin) {
				return true
			}
		}
		return false
	}
}
