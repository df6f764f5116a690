package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", "HTTPS://Chat.Example.com", "not a url"}, testLogger())

	for _, tc := range []struct {
		name    string
		origin  string
		allowed bool
	}{
		{name: "missing origin", origin: "", allowed: true},
		{name: "exact match", origin: "http://localhost:8080", allowed: true},
		{name: "case insensitive", origin: "https://CHAT.example.com", allowed: true},
		{name: "path ignored", origin: "http://localhost:8080/chat", allowed: true},
		{name: "different port", origin: "http://localhost:9090", allowed: false},
		{name: "scheme differs", origin: "https://localhost:8080", allowed: false},
		{name: "malformed", origin: "://bad", allowed: false},
		{name: "host only", origin: "localhost:8080", allowed: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			require.Equal(t, tc.allowed, policy.checkOrigin(r))
		})
	}
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	req := require.New(t)
	policy := newOriginPolicy([]string{"*"}, testLogger())

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example")

	req.True(policy.checkOrigin(r))
}

func TestNormalizeOrigins_Drops_Invalid(t *testing.T) {
	req := require.New(t)

	origins, allowAll := normalizeOrigins([]string{" http://A.example ", "", "nope"}, testLogger())

	req.Equal([]string{"http://a.example"}, origins)
	req.False(allowAll)
}
