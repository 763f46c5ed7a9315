package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	cfg := validConfig()
	w := httptest.NewRecorder()
	securityHeaders(&cfg, w)

	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	w = httptest.NewRecorder()
	securityHeaders(&cfg, w)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestServeRobotsHonorsPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.prefix = "/games"

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/games/robots.txt", nil)
	serveRobots(&cfg)(w, r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Disallow: /games/1v1/\n")
}

func TestServeRobotsNoPrefix(t *testing.T) {
	cfg := validConfig()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/robots.txt", nil)
	serveRobots(&cfg)(w, r, nil)

	assert.Contains(t, w.Body.String(), "Disallow: /1v1/\n")
}
