package main

import (
	"github.com/campuscircle/campuscircle-go/api"
	"github.com/campuscircle/campuscircle-go/auth"
	"github.com/campuscircle/campuscircle-go/messaging"
	"github.com/campuscircle/campuscircle-go/shared/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global variables
var (
	cfg          *Config
	flagToken    string
	flagUsername string

	creds      auth.CredentialStore
	restClient *api.Client
	rtClient   *messaging.Client
)

type Config struct {
	APIURL   string
	WSURL    string
	Username string
	Token    string
}

func loadConfig() (*Config, error) {
	c := &Config{
		APIURL:   config.GetEnv("CAMPUSCIRCLE_API_URL", "http://localhost:8081/api"),
		WSURL:    config.GetEnv("CAMPUSCIRCLE_WS_URL", "ws://localhost:8081/ws"),
		Username: config.GetEnv("CAMPUSCIRCLE_USERNAME", ""),
		Token:    config.GetEnv("CAMPUSCIRCLE_TOKEN", ""),
	}
	if flagUsername != "" {
		c.Username = flagUsername
	}
	if flagToken != "" {
		c.Token = flagToken
	}
	return c, nil
}

func initClients() error {
	if cfg.Token != "" {
		store := auth.NewMemoryStore()
		store.Set(auth.KeyAccessToken, cfg.Token)
		creds = store
	} else {
		store, err := auth.DefaultFileStore()
		if err != nil {
			return err
		}
		creds = store
	}

	restClient = api.NewClient(cfg.APIURL, creds)
	rtClient = messaging.NewClient(messaging.Options{
		URL:         cfg.WSURL,
		Credentials: creds,
	})
	return nil
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
