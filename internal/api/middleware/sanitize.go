package middleware

import (
	"net/http"
	"strings"

	"github.com/cargoflow/audittrail/internal/util"
)

// SanitizeHeaders returns a map of header keys to redacted/sanitized values
// for safe logging. Sensitive headers are redacted; other values are
// sanitized and truncated.
func SanitizeHeaders(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	sensitive := map[string]struct{}{
		"authorization":       {},
		"cookie":              {},
		"set-cookie":          {},
		"proxy-authorization": {},
		"x-api-key":           {},
		"x-auth-token":        {},
		"x-forwarded-for":     {},
	}
	out := make(map[string][]string, len(h))
	for k, vals := range h {
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			out[k] = []string{"<redacted>"}
			continue
		}
		sanitized := make([]string, 0, len(vals))
		for _, v := range vals {
			sanitized = append(sanitized, util.Truncate(util.SanitizeForLog(v), 200))
		}
		out[k] = sanitized
	}
	return out
}

// SanitizePath prepares a request path for safe logging by removing
// control characters and truncating long values. It does not include
// query parameters.
func SanitizePath(p string) string {
	if i := strings.Index(p, "?"); i != -1 {
		p = p[:i]
	}
	return util.Truncate(util.SanitizeForLog(p), 200)
}
