package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		bind:           "0.0.0.0",
		gameDuration:   60 * time.Second,
		port:           8080,
		roomTTL:        30 * time.Minute,
		sequenceLength: 120,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.validate())

	cfg = validConfig()
	cfg.tlsCert = "cert.pem"
	assert.Error(t, cfg.validate(), "cert without key")

	cfg = validConfig()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.port = 70000
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.gameDuration = 500 * time.Millisecond
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.roomTTL = 10 * time.Second
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.sequenceLength = 0
	assert.Error(t, cfg.validate())
}

func TestConfigScheme(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}
