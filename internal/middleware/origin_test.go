package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"place-api/internal/config"
)

func TestOriginGuard_Allowed(t *testing.T) {
	g := NewOriginGuard(config.OriginConfig{
		AllowIPs:   []string{"198.51.100.4", "not-an-ip"},
		AllowCIDRs: []string{"10.0.0.0/8", "2001:db8::/32", "bad/99"},
	})
	assert.True(t, g.Allowed(net.ParseIP("198.51.100.4")))
	assert.True(t, g.Allowed(net.ParseIP("10.20.30.40")))
	assert.True(t, g.Allowed(net.ParseIP("2001:db8::1")))
	assert.False(t, g.Allowed(net.ParseIP("127.0.0.1")))
	assert.False(t, g.Allowed(nil))

	g.AddCIDRs("10.0.0.0/8", "127.0.0.0/8")
	assert.True(t, g.Allowed(net.ParseIP("127.0.0.1")))
	assert.Len(t, g.allowCIDRs, 3)
}

func TestOriginGuard_Middleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := WrapOrigin(config.OriginConfig{Enabled: true, AllowLocal: true, RealIPHeader: "X-Real-IP"}, ok)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r.Header.Set("X-Real-IP", "203.0.113.9")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWrapOrigin_DisabledPassesThrough(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := WrapOrigin(config.OriginConfig{}, ok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
