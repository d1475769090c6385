package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/moneybookapp/moneybook/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction

	// Kakao publishes its issuer and key set at fixed URLs
	defaultKakaoIssuer  = "https://kauth.kakao.com"
	defaultKakaoJWKSURL = "https://kauth.kakao.com/.well-known/jwks.json"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the moneybook service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Local access and refresh tokens are signed symmetrically with this key
	SecretKey string

	// Environment
	Environment string

	// OAuth client id registered with Kakao, checked against the id token audience
	KakaoClientID string

	// Kakao issuer and key set endpoint
	// Overridable mostly for tests against a fake provider
	KakaoIssuer  string
	KakaoJWKSURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:     defaultLoggingLevel,
		ListenAddr:   defaultListenAddr,
		Environment:  defaultEnvironment,
		KakaoIssuer:  defaultKakaoIssuer,
		KakaoJWKSURL: defaultKakaoJWKSURL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"KAKAO_CLIENT_ID": setString(&c.KakaoClientID),
		"KAKAO_ISSUER":    setString(&c.KakaoIssuer),
		"KAKAO_JWKS_URL":  setString(&c.KakaoJWKSURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("moneybook", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.KakaoClientID, "kakao-client-id", c.KakaoClientID, "Kakao OAuth client id")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key must be set")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database dsn must be set")
	}
	if c.KakaoClientID == "" {
		return errors.New("kakao client id must be set")
	}

	return nil
}
