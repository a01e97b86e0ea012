package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultRedirectURL   = "http://localhost:3000"
	DefaultSuccessPath   = "/buy"
	DefaultSessionMaxAge = 30 * 24 * time.Hour
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultRetryBackoff  = 250 * time.Millisecond
)

// Config is built once at process start and passed by reference to every
// component. Nothing reads the environment after Load returns.
type Config struct {
	EnvVars
	Apple    AppleConfig
	Google   GoogleConfig
	Session  SessionConfig
	Outbound OutboundConfig
	Redis    RedisConfig
}

// AppleConfig carries the Sign in with Apple credentials. PrivateKey may be
// a full PEM document or the bare base64 key material from the .p8 file.
type AppleConfig struct {
	ClientID   string `validate:"required"`
	TeamID     string `validate:"required"`
	KeyID      string `validate:"required"`
	PrivateKey string `validate:"required"`
}

type GoogleConfig struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
}

type SessionConfig struct {
	Secret       string        `validate:"required"`
	SuccessPath  string        `validate:"required,startswith=/"`
	MaxAge       time.Duration `validate:"gt=0"`
	CookieSecure bool
}

// OutboundConfig tunes calls to the identity providers. MaxRetries of zero
// means fail fast.
type OutboundConfig struct {
	Timeout      time.Duration `validate:"gt=0"`
	MaxRetries   int           `validate:"gte=0,lte=5"`
	RetryBackoff time.Duration `validate:"gte=0"`
}

type RedisConfig struct {
	URL string `validate:"omitempty,url"`
}

var validate = validator.New()

// Load reads the environment into a validated Config. Provider credentials
// are not required here: an incomplete provider is simply not offered.
func Load() (*Config, error) {
	c := &Config{
		EnvVars: EnvVars{
			Port:     GetEnv(portEnvVar, "8080"),
			AppName:  GetEnv(appNameVar, "Account Portal"),
			Env:      GetEnv(envVar, "DEV"),
			LogLevel: GetEnv(logLevelVar, "info"),
			BaseURL:  GetEnv(redirectURLVar, DefaultRedirectURL),
		},
		Apple: AppleConfig{
			ClientID:   GetEnv(appleClientIDVar, ""),
			TeamID:     GetEnv(appleTeamIDVar, ""),
			KeyID:      GetEnv(appleKeyIDVar, ""),
			PrivateKey: GetEnv(applePrivateKeyVar, ""),
		},
		Google: GoogleConfig{
			ClientID:     GetEnv(googleClientIDVar, ""),
			ClientSecret: GetEnv(googleClientSecretVar, ""),
		},
		Session: SessionConfig{
			Secret:      GetEnv(authSecretVar, ""),
			SuccessPath: GetEnv(successPathVar, DefaultSuccessPath),
		},
		Redis: RedisConfig{
			URL: GetEnv(redisURLVar, ""),
		},
	}

	var err error
	if c.Session.CookieSecure, err = getEnvBool(cookieSecureVar, true); err != nil {
		return nil, err
	}
	if c.Session.MaxAge, err = getEnvDuration(sessionMaxAgeVar, DefaultSessionMaxAge); err != nil {
		return nil, err
	}
	if c.Outbound.Timeout, err = getEnvDuration(httpTimeoutVar, DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	if c.Outbound.MaxRetries, err = getEnvInt(maxRetriesVar, 0); err != nil {
		return nil, err
	}
	if c.Outbound.RetryBackoff, err = getEnvDuration(retryBackoffVar, DefaultRetryBackoff); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks everything except the per-provider credentials.
func (c *Config) Validate() error {
	for name, section := range map[string]any{
		"env":      c.EnvVars,
		"session":  c.Session,
		"outbound": c.Outbound,
		"redis":    c.Redis,
	} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("invalid %s config: %w", name, err)
		}
	}
	return nil
}

// AppleEnabled reports whether every Apple credential is present.
func (c *Config) AppleEnabled() bool {
	return validate.Struct(c.Apple) == nil
}

func (c *Config) GoogleEnabled() bool {
	return validate.Struct(c.Google) == nil
}
