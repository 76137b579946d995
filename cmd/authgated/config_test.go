package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("AUTHGATE_DATABASE__DSN", "app:secret@tcp(localhost:3306)/auth")
	t.Setenv("AUTHGATE_REDIS__ADDR", "redis:6380")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 6, cfg.OTP.Digits)
	assert.Equal(t, 5*time.Minute, cfg.OTP.Validity)
	assert.Equal(t, 1, cfg.Throttle.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Throttle.Decay)
	assert.Equal(t, "filesystem", cfg.Mail.Mode)

	// Env beats the confmap defaults via the __ key mapping.
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "app:secret@tcp(localhost:3306)/auth", cfg.Database.DSN)
}

func TestLoadConfigRequiresDSN(t *testing.T) {
	t.Setenv("AUTHGATE_DATABASE__DSN", "")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestEmailFromBodyRestoresBody(t *testing.T) {
	payload := `{"email":"user@example.com"}`
	req := httptest.NewRequest("POST", "/otp/generate", strings.NewReader(payload))

	assert.Equal(t, "user@example.com", emailFromBody(req))

	// The handler must still be able to decode the same body.
	var buf bytes.Buffer
	_, err := buf.ReadFrom(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, payload, buf.String())
}

func TestEmailFromBodyMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/otp/generate", strings.NewReader("{broken"))
	assert.Equal(t, "", emailFromBody(req))

	var decoded map[string]any
	err := json.NewDecoder(req.Body).Decode(&decoded)
	assert.Error(t, err)
}
