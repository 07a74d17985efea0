// Package security screens inbound requests before they reach rate limiting
// or handlers.
package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Rejection reasons reported in Decision.Reason.
const (
	ReasonBotUserAgent   = "bot_user_agent"
	ReasonEmptyUserAgent = "empty_user_agent"
	ReasonSuspiciousPath = "suspicious_path"
	ReasonPreflight      = "preflight"
)

// DefaultBotMarkers match automation clients by User-Agent substring.
var DefaultBotMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"java/",
	"okhttp",
	"axios",
	"node-fetch",
	"httpclient",
	"libwww-perl",
}

// DefaultSuspiciousPaths match probes for admin panels, secrets and process
// introspection.
var DefaultSuspiciousPaths = []string{
	"/wp-admin",
	"/wp-login",
	"/admin",
	"/phpmyadmin",
	"/.env",
	"/.git",
	"/config.php",
	"/etc/passwd",
	"/proc/",
	"/server-status",
	"/actuator",
}

// CORS response values.
const (
	AllowedMethods  = "GET, POST, PUT, DELETE, OPTIONS"
	AllowedHeaders  = "Content-Type, Authorization, X-API-Key, X-Request-ID"
	PreflightMaxAge = 86400
)

// Config configures a Gate. Empty marker lists fall back to the defaults.
type Config struct {
	BotMarkers          []string
	SuspiciousPaths     []string
	AllowedOrigins      []string
	BlockEmptyUserAgent bool
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Continue bool
	Status   int
	Code     string
	Message  string
	Reason   string
	Headers  http.Header
}

// Gate filters bots and suspicious paths and answers CORS preflights.
type Gate struct {
	botMarkers      []string
	suspiciousPaths []string
	origins         []string
	wildcard        bool
	blockEmptyUA    bool
	securityHeaders http.Header
}

// NewGate builds a gate. Markers are lower-cased once here so Screen only
// lower-cases the request side.
func NewGate(cfg Config) *Gate {
	markers := cfg.BotMarkers
	if len(markers) == 0 {
		markers = DefaultBotMarkers
	}
	paths := cfg.SuspiciousPaths
	if len(paths) == 0 {
		paths = DefaultSuspiciousPaths
	}

	g := &Gate{
		botMarkers:      lowerAll(markers),
		suspiciousPaths: lowerAll(paths),
		blockEmptyUA:    cfg.BlockEmptyUserAgent,
		securityHeaders: buildSecurityHeaders(),
	}

	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
			continue
		case "*":
			g.wildcard = true
		default:
			g.origins = append(g.origins, origin)
		}
	}
	if !g.wildcard && len(g.origins) == 0 {
		g.wildcard = true
	}
	return g
}

// Screen evaluates bot filtering, path filtering and CORS preflight, in that
// order. A Decision with Continue set lets the request proceed.
func (g *Gate) Screen(r *http.Request) Decision {
	ua := strings.ToLower(r.UserAgent())
	if ua == "" && g.blockEmptyUA {
		return forbidden(ReasonEmptyUserAgent)
	}
	for _, marker := range g.botMarkers {
		if strings.Contains(ua, marker) {
			return forbidden(ReasonBotUserAgent)
		}
	}

	path := strings.ToLower(r.URL.Path)
	for _, fragment := range g.suspiciousPaths {
		if strings.Contains(path, fragment) {
			return forbidden(ReasonSuspiciousPath)
		}
	}

	if r.Method == http.MethodOptions {
		return Decision{
			Continue: false,
			Status:   http.StatusOK,
			Reason:   ReasonPreflight,
			Headers:  g.PreflightHeaders(r.Header.Get("Origin")),
		}
	}

	return Decision{Continue: true, Status: http.StatusOK}
}

// AllowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed.
func (g *Gate) AllowOrigin(origin string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if g.wildcard {
		if origin == "" {
			return "*"
		}
		return origin
	}
	for _, allowed := range g.origins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// CORSHeaders returns the headers attached to ordinary API responses.
func (g *Gate) CORSHeaders(origin string) http.Header {
	h := http.Header{}
	allow := g.AllowOrigin(origin)
	if allow == "" {
		return h
	}
	h.Set("Access-Control-Allow-Origin", allow)
	if allow != "*" {
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Vary", "Origin")
	}
	return h
}

// PreflightHeaders returns the full CORS header set for an OPTIONS response.
func (g *Gate) PreflightHeaders(origin string) http.Header {
	h := g.CORSHeaders(origin)
	h.Set("Access-Control-Allow-Methods", AllowedMethods)
	h.Set("Access-Control-Allow-Headers", AllowedHeaders)
	h.Set("Access-Control-Max-Age", strconv.Itoa(PreflightMaxAge))
	return h
}

// SecurityHeaders returns a copy of the static security header set.
func (g *Gate) SecurityHeaders() http.Header {
	return g.securityHeaders.Clone()
}

// ApplySecurityHeaders writes the static security headers onto h.
func (g *Gate) ApplySecurityHeaders(h http.Header) {
	for key, values := range g.securityHeaders {
		h[key] = append([]string(nil), values...)
	}
}

func forbidden(reason string) Decision {
	return Decision{
		Continue: false,
		Status:   http.StatusForbidden,
		Code:     "FORBIDDEN",
		Message:  "Access denied",
		Reason:   reason,
	}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
