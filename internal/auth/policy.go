package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/settings":
		if method == http.MethodGet {
			return RoleCashier, true
		}
		return RoleAdmin, true
	case path == "/api/v1/penalties/sweep":
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/bills/") && strings.HasSuffix(path, "/waive-penalty"):
		return RoleAdmin, true
	case path == "/api/v1/payments" && method == http.MethodPost:
		return RoleCashier, true
	case strings.HasPrefix(path, "/api/v1/payments/"):
		return RoleCashier, true
	case path == "/api/v1/readings" && method == http.MethodPost:
		return RoleReader, true
	case path == "/api/v1/readings/ai":
		return RoleReader, true
	case strings.HasPrefix(path, "/api/v1/readings/") && method == http.MethodPost:
		// confirm / reject
		return RoleCashier, true
	case path == "/api/v1/consumers" && method != http.MethodGet:
		return RoleCashier, true
	case strings.HasPrefix(path, "/api/v1/consumers/") &&
		(strings.HasSuffix(path, "/disconnect") || strings.HasSuffix(path, "/reconnect")):
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/exports/"):
		return RoleCashier, true
	case strings.HasPrefix(path, "/api/v1/"):
		return RoleReader, true
	}
	return "", false
}
