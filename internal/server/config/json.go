package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "24h" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	SecretKey                    string         `json:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	StoreTimeout                 timex.Duration `json:"store_timeout"`
	NotifierTimeout              timex.Duration `json:"notifier_timeout"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	EmailUser                    string         `json:"email_user"`
	EmailPassword                string         `json:"email_password"`
	MailFromName                 string         `json:"mail_from_name"`
	DefaultAvatarURL             string         `json:"default_avatar_url"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Only fields present (non-zero) in the file replace existing values.
// An unreadable file or invalid JSON panics, like flag parse errors.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.EmailUser, c.EmailUser)
	setString(&config.EmailPassword, c.EmailPassword)
	setString(&config.MailFromName, c.MailFromName)
	setString(&config.DefaultAvatarURL, c.DefaultAvatarURL)
	setString(&config.LogLevel, c.LogLevel)

	if c.SessionTokenValidityDuration.Duration > 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration > 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if c.StoreTimeout.Duration > 0 {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.NotifierTimeout.Duration > 0 {
		config.NotifierTimeout = c.NotifierTimeout.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
