package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// Environment variable names understood by the server.
const (
	EnvSecretKey     = "JWT_SECRET"
	EnvDatabaseDSN   = "DATABASE_DSN"
	EnvEmailUser     = "EMAIL_USER"
	EnvEmailPassword = "EMAIL_PASS"
	EnvSMTPHost      = "SMTP_HOST"
	EnvSMTPPort      = "SMTP_PORT"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvHTTPAddr      = "HTTP_ADDR"
	EnvLogLevel      = "LOG_LEVEL"
)

// parseEnv loads the dotenv file named by -env (default ".env") without
// overriding variables already present in the process environment, then
// overlays any set variables onto config. A missing dotenv file is not an
// error; a malformed one panics.
func parseEnv(config *Config) {
	if err := godotenv.Load(flagx.EnvFileFlag()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	lookupString(&config.SecretKey, EnvSecretKey)
	lookupString(&config.DatabaseDSN, EnvDatabaseDSN)
	lookupString(&config.EmailUser, EnvEmailUser)
	lookupString(&config.EmailPassword, EnvEmailPassword)
	lookupString(&config.SMTPHost, EnvSMTPHost)
	lookupString(&config.RedisAddr, EnvRedisAddr)
	lookupString(&config.RedisPassword, EnvRedisPassword)
	lookupString(&config.EndpointAddrHTTP, EnvHTTPAddr)
	lookupString(&config.LogLevel, EnvLogLevel)

	if v, ok := os.LookupEnv(EnvSMTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.SMTPPort = port
	}
}

func lookupString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
