package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func TestLoadConfigDefaults(t *testing.T) {
	config := LoadConfig(ini.Empty())

	assert.Equal(t, 3000, config.Port, "Default port should be 3000")
	assert.Empty(t, config.AllowedOrigins, "No origins should be restricted by default")
	assert.Equal(t, MatchByCode, config.Matchmaking, "Room codes are the default matchmaking mode")
	assert.Equal(t, 5, config.CountdownSeconds, "Default countdown should be 5 seconds")
	assert.Equal(t, 400.0, config.Midline, "Default midline should sit at 400")
	assert.Equal(t, 30.0, config.PaddleHalfWidth, "Default paddle half width should be 30")
}

func TestLoadConfigFromFile(t *testing.T) {
	file, err := ini.Load([]byte(`
[server]
port = 8080
origins = https://example.com, https://other.example.com
matchmaking = quick

[game]
countdown_seconds = 3
midline = 500
paddle_half_width = 40
`))
	require.NoError(t, err, "Loading the ini fixture should not fail")

	config := LoadConfig(file)
	assert.Equal(t, 8080, config.Port, "Port should come from the file")
	assert.Equal(t, []string{"https://example.com", "https://other.example.com"}, config.AllowedOrigins, "Origins should be split and trimmed")
	assert.Equal(t, MatchQuick, config.Matchmaking, "Matchmaking mode should come from the file")
	assert.Equal(t, 3, config.CountdownSeconds, "Countdown should come from the file")
	assert.Equal(t, 500.0, config.Midline, "Midline should come from the file")
	assert.Equal(t, 40.0, config.PaddleHalfWidth, "Paddle half width should come from the file")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	file, err := ini.Load([]byte(`
[server]
port = not-a-number
matchmaking = tournament

[game]
countdown_seconds = -2
`))
	require.NoError(t, err, "Loading the ini fixture should not fail")

	config := LoadConfig(file)
	assert.Equal(t, 3000, config.Port, "A non-numeric port should fall back to the default")
	assert.Equal(t, MatchByCode, config.Matchmaking, "An unknown matchmaking mode should fall back to room codes")
	assert.Equal(t, 5, config.CountdownSeconds, "A non-positive countdown should fall back to the default")
}

// Hosting platforms inject the listen port through the environment
func TestLoadConfigPortEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9100")

	file, err := ini.Load([]byte("[server]\nport = 8080\n"))
	require.NoError(t, err, "Loading the ini fixture should not fail")

	config := LoadConfig(file)
	assert.Equal(t, 9100, config.Port, "The PORT environment variable should override the configured port")
}

func TestOriginAllowed(t *testing.T) {
	open := DefaultConfig()
	assert.True(t, open.OriginAllowed("https://anywhere.example.com"), "An empty allowlist should admit any origin")

	restricted := DefaultConfig()
	restricted.AllowedOrigins = []string{"https://example.com"}
	assert.True(t, restricted.OriginAllowed("https://Example.com"), "Origin matching should be case-insensitive")
	assert.True(t, restricted.OriginAllowed(""), "Non-browser clients without an Origin header should be admitted")
	assert.False(t, restricted.OriginAllowed("https://evil.example.com"), "An origin outside the allowlist must be rejected")

	wildcard := DefaultConfig()
	wildcard.AllowedOrigins = []string{"*"}
	assert.True(t, wildcard.OriginAllowed("https://anywhere.example.com"), "A wildcard entry should admit any origin")
}
