package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelVar    = "LOG_LEVEL"
	redirectURLVar = "AUTH_REDIRECT_URL"
	authSecretVar  = "AUTH_SECRET"

	appleClientIDVar   = "AUTH_APPLE_ID"
	appleTeamIDVar     = "AUTH_APPLE_TEAM_ID"
	appleKeyIDVar      = "AUTH_APPLE_KEY_ID"
	applePrivateKeyVar = "AUTH_APPLE_SECRET"

	googleClientIDVar     = "AUTH_GOOGLE_ID"
	googleClientSecretVar = "AUTH_GOOGLE_SECRET"

	successPathVar   = "AUTH_SUCCESS_PATH"
	cookieSecureVar  = "AUTH_COOKIE_SECURE"
	sessionMaxAgeVar = "AUTH_SESSION_MAX_AGE"

	httpTimeoutVar  = "HTTP_CLIENT_TIMEOUT"
	maxRetriesVar   = "TOKEN_EXCHANGE_MAX_RETRIES"
	retryBackoffVar = "TOKEN_EXCHANGE_RETRY_BACKOFF"

	redisURLVar = "REDIS_URL"
)

// EnvVars holds the process level settings.
type EnvVars struct {
	Port     string
	AppName  string
	Env      string
	LogLevel string
	// BaseURL is the public URL the identity providers redirect back to,
	// e.g. "https://account.example.com".
	BaseURL string `validate:"required,url"`
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(envVar string, defaultValue bool) (bool, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", envVar, err)
	}
	return b, nil
}

func getEnvInt(envVar string, defaultValue int) (int, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	return i, nil
}

func getEnvDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	return d, nil
}
