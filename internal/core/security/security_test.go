package security

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(method, path, userAgent string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", userAgent)
	return req
}

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

func TestScreenBlocksBots(t *testing.T) {
	gate := NewGate(Config{})

	for _, ua := range []string{"curl/8.4.0", "Googlebot/2.1", "python-requests/2.31", "Wget/1.21", "CURL/7"} {
		decision := gate.Screen(newRequest(http.MethodGet, "/api/alerts", ua))
		assert.False(t, decision.Continue, ua)
		assert.Equal(t, http.StatusForbidden, decision.Status, ua)
		assert.Equal(t, ReasonBotUserAgent, decision.Reason, ua)
	}
}

func TestScreenBlocksSuspiciousPaths(t *testing.T) {
	gate := NewGate(Config{})

	for _, path := range []string{"/wp-admin/setup.php", "/.env", "/api/../.git/config", "/PROC/self/environ", "/Admin"} {
		decision := gate.Screen(newRequest(http.MethodGet, path, browserUA))
		assert.Equal(t, http.StatusForbidden, decision.Status, path)
		assert.Equal(t, ReasonSuspiciousPath, decision.Reason, path)
	}
}

func TestScreenBotCheckRunsBeforePreflight(t *testing.T) {
	gate := NewGate(Config{})
	decision := gate.Screen(newRequest(http.MethodOptions, "/api/alerts", "curl/8"))
	require.Equal(t, http.StatusForbidden, decision.Status)
}

func TestScreenPreflight(t *testing.T) {
	gate := NewGate(Config{AllowedOrigins: []string{"https://dash.example.org"}})

	req := newRequest(http.MethodOptions, "/api/alerts", browserUA)
	req.Header.Set("Origin", "https://dash.example.org")

	decision := gate.Screen(req)
	require.False(t, decision.Continue)
	require.Equal(t, http.StatusOK, decision.Status)
	require.Equal(t, ReasonPreflight, decision.Reason)
	require.Equal(t, "https://dash.example.org", decision.Headers.Get("Access-Control-Allow-Origin"))
	require.Equal(t, AllowedMethods, decision.Headers.Get("Access-Control-Allow-Methods"))
	require.Equal(t, AllowedHeaders, decision.Headers.Get("Access-Control-Allow-Headers"))
	require.Equal(t, "true", decision.Headers.Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "86400", decision.Headers.Get("Access-Control-Max-Age"))
}

func TestScreenPreflightUnknownOriginGetsNoAllowOrigin(t *testing.T) {
	gate := NewGate(Config{AllowedOrigins: []string{"https://dash.example.org"}})

	req := newRequest(http.MethodOptions, "/api/alerts", browserUA)
	req.Header.Set("Origin", "https://evil.example.com")

	decision := gate.Screen(req)
	require.Equal(t, http.StatusOK, decision.Status)
	require.Empty(t, decision.Headers.Get("Access-Control-Allow-Origin"))
}

func TestScreenAllowsOrdinaryRequests(t *testing.T) {
	gate := NewGate(Config{})
	decision := gate.Screen(newRequest(http.MethodPost, "/api/sensors/readings", browserUA))
	require.True(t, decision.Continue)
}

func TestScreenEmptyUserAgent(t *testing.T) {
	require.True(t, NewGate(Config{}).Screen(newRequest(http.MethodGet, "/api", "")).Continue)

	decision := NewGate(Config{BlockEmptyUserAgent: true}).Screen(newRequest(http.MethodGet, "/api", ""))
	require.Equal(t, ReasonEmptyUserAgent, decision.Reason)
}

func TestAllowOriginWildcard(t *testing.T) {
	gate := NewGate(Config{AllowedOrigins: []string{"*"}})
	require.Equal(t, "https://any.example", gate.AllowOrigin("https://any.example"))
	require.Equal(t, "*", gate.AllowOrigin(""))

	h := gate.CORSHeaders("")
	require.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	require.Empty(t, h.Get("Access-Control-Allow-Credentials"))
}

func TestSecurityHeadersAreStatic(t *testing.T) {
	gate := NewGate(Config{})

	h := gate.SecurityHeaders()
	require.Equal(t, "DENY", h.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	require.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	require.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	require.Contains(t, h.Get("Content-Security-Policy"), "default-src 'self'")
	require.Contains(t, h.Get("Permissions-Policy"), "camera=()")

	h.Set("X-Frame-Options", "SAMEORIGIN")
	require.Equal(t, "DENY", gate.SecurityHeaders().Get("X-Frame-Options"))

	target := http.Header{}
	gate.ApplySecurityHeaders(target)
	require.Equal(t, "DENY", target.Get("X-Frame-Options"))
}

func TestRulesFileExtendsDefaults(t *testing.T) {
	rules, err := ParseRules([]byte("bot_markers:\n  - HeadlessChrome\nsuspicious_paths:\n  - /cgi-bin\n"))
	require.NoError(t, err)

	gate := NewGate(rules.Apply(Config{}))
	require.Equal(t, ReasonBotUserAgent, gate.Screen(newRequest(http.MethodGet, "/api", "Mozilla HeadlessChrome/120")).Reason)
	require.Equal(t, ReasonSuspiciousPath, gate.Screen(newRequest(http.MethodGet, "/cgi-bin/x", browserUA)).Reason)
	require.Equal(t, ReasonBotUserAgent, gate.Screen(newRequest(http.MethodGet, "/api", "curl/8")).Reason)
}

func TestRulesFileReplace(t *testing.T) {
	rules, err := ParseRules([]byte("replace: true\nbot_markers: [scanner]\n"))
	require.NoError(t, err)

	gate := NewGate(rules.Apply(Config{}))
	require.True(t, gate.Screen(newRequest(http.MethodGet, "/api", "curl/8")).Continue)
	require.False(t, gate.Screen(newRequest(http.MethodGet, "/api", "vuln-scanner")).Continue)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("suspicious_paths: [/backup]\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Equal(t, []string{"/backup"}, rules.SuspiciousPaths)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseRules([]byte("bot_markers: ['  ']\n"))
	require.Error(t, err)
}

func TestKeyRing(t *testing.T) {
	ring := NewKeyRing("alpha-key", "", "beta-key", "alpha-key")
	require.Equal(t, 2, ring.Len())
	require.True(t, ring.Valid("alpha-key"))
	require.True(t, ring.Valid("beta-key"))
	require.False(t, ring.Valid("gamma-key"))
	require.False(t, ring.Valid(""))

	var empty *KeyRing
	require.False(t, empty.Valid("alpha-key"))
	require.Equal(t, 0, NewKeyRing().Len())
}
