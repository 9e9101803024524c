package config

import (
	"os"
	"time"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	APIBaseURL      string
	HubURL          string
	HTTPTimeout     time.Duration
	DisplayTimezone string
	CredentialFile  string
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger := zap.NewExample()
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		APIBaseURL:      getenv("API_BASE_URL", "http://localhost:5274"),
		HubURL:          getenv("HUB_URL", "ws://localhost:5274/appointmentHub"),
		HTTPTimeout:     getDuration("HTTP_TIMEOUT", 15*time.Second),
		DisplayTimezone: getenv("DISPLAY_TIMEZONE", "Asia/Baku"),
		CredentialFile:  getenv("CREDENTIAL_FILE", defaultCredentialFile()),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnf("invalid duration in %v, using default of %v, err: %v", key, fallback, err)
		return fallback
	}
	return d
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".hospital-client-credential"
	}
	return dir + "/hospital-client/credential"
}
