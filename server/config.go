package server

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// MatchmakingMode selects how room admission behaves. The two modes are
// mutually exclusive per deployment.
type MatchmakingMode string

const (
	// Clients create and join rooms by explicit room code
	MatchByCode MatchmakingMode = "code"
	// Anonymous pairing: a newcomer lands in the oldest room with a free slot
	MatchQuick MatchmakingMode = "quick"
)

// Config holds all settings for the relay server process
type Config struct {
	Port           int
	AllowedOrigins []string // empty means allow any origin
	Matchmaking    MatchmakingMode

	CountdownSeconds int

	// Field geometry used for paddle side confinement
	Midline         float64
	PaddleHalfWidth float64
}

const (
	defaultPort             = 3000
	defaultCountdownSeconds = 5
	defaultMidline          = 400
	defaultPaddleHalfWidth  = 30
)

// DefaultConfig returns a Config with every setting at its default value
func DefaultConfig() *Config {
	return &Config{
		Port:             defaultPort,
		Matchmaking:      MatchByCode,
		CountdownSeconds: defaultCountdownSeconds,
		Midline:          defaultMidline,
		PaddleHalfWidth:  defaultPaddleHalfWidth,
	}
}

// LoadConfig builds a Config from the ini file, keeping defaults for any
// missing key. The PORT environment variable overrides the configured port.
func LoadConfig(file *ini.File) *Config {
	config := DefaultConfig()

	serverSection := file.Section("server")
	if key, err := serverSection.GetKey("port"); err == nil {
		if port, intErr := key.Int(); intErr == nil {
			config.Port = port
		} else {
			log.WithError(intErr).Warn("Server port in configuration file is not an integer, using default.")
		}
	}
	if key, err := serverSection.GetKey("origins"); err == nil && key.String() != "" {
		for _, origin := range strings.Split(key.String(), ",") {
			config.AllowedOrigins = append(config.AllowedOrigins, strings.TrimSpace(origin))
		}
	}
	if key, err := serverSection.GetKey("matchmaking"); err == nil {
		switch mode := MatchmakingMode(key.String()); mode {
		case MatchByCode, MatchQuick:
			config.Matchmaking = mode
		default:
			log.WithField("matchmaking", key.String()).Warn("Unknown matchmaking mode in configuration file, using room codes.")
		}
	}

	gameSection := file.Section("game")
	if key, err := gameSection.GetKey("countdown_seconds"); err == nil {
		if seconds, intErr := key.Int(); intErr == nil && seconds > 0 {
			config.CountdownSeconds = seconds
		}
	}
	if key, err := gameSection.GetKey("midline"); err == nil {
		if midline, floatErr := key.Float64(); floatErr == nil {
			config.Midline = midline
		}
	}
	if key, err := gameSection.GetKey("paddle_half_width"); err == nil {
		if halfWidth, floatErr := key.Float64(); floatErr == nil {
			config.PaddleHalfWidth = halfWidth
		}
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		if port, err := strconv.Atoi(envPort); err == nil {
			config.Port = port
		} else {
			log.WithField("PORT", envPort).Warn("PORT environment variable is not an integer, ignoring.")
		}
	}

	return config
}

// OriginAllowed reports whether a client from the given origin may use the
// relay. An empty allowlist admits everyone; requests without an Origin
// header (non-browser clients) are always admitted.
func (config *Config) OriginAllowed(origin string) bool {
	if len(config.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
