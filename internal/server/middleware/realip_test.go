package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustedRealIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		want    string
	}{
		{"NoProxiesConfigured", nil, "192.0.2.10:5000", "192.0.2.10"},
		{"UntrustedPeer", trusted, "192.0.2.10:5000", "192.0.2.10"},
		{"TrustedPeer", trusted, "10.1.2.3:443", "203.0.113.9"},
		{"TrustedIPv6Peer", trusted, "[2001:db8::1]:443", "203.0.113.9"},
		{"MappedIPv4Peer", trusted, "[::ffff:10.1.2.3]:443", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/sensors/readings", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
