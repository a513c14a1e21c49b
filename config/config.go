// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Feature-gated credentials are checked by the Validate* helpers, not by Load.
package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	// Twitch chat
	TwitchChannels    []string
	TwitchBotUsername string
	TwitchOAuthToken  string

	// Twitch Helix (badge source)
	TwitchClientID     string
	TwitchClientSecret string
	BadgeFallbackURL   string

	// Database
	DBDsn string

	// HTTP
	ListenAddr string

	// Messaging. When HubURL is set the process joins a remote websocket hub
	// instead of using the in-process bus. When HubListen is set the process
	// also hosts a hub for other processes to join.
	MessagingHubURL    string
	MessagingHubListen string

	// Logging
	LogFormat string
	LogLevel  string
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Twitch creds are missing; use ValidateChatReady() when you require a chat
// connection and ValidateHelixReady() when you require the Helix badge source.
// Without Helix creds the badge cache falls back to the public endpoint.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannels = splitList(os.Getenv("TWITCH_CHANNELS"))
	if len(cfg.TwitchChannels) == 0 {
		// legacy single-channel variable
		if ch := strings.TrimSpace(os.Getenv("TWITCH_CHANNEL")); ch != "" {
			cfg.TwitchChannels = []string{ch}
		}
	}
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.BadgeFallbackURL = os.Getenv("BADGE_FALLBACK_URL")

	// DB. Empty means the in-memory store, which is enough for a single
	// process without persistence.
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		cfg.ListenAddr = ":" + port
	}

	cfg.MessagingHubURL = os.Getenv("MESSAGING_HUB_URL")
	if cfg.MessagingHubURL != "" &&
		!strings.HasPrefix(cfg.MessagingHubURL, "ws://") &&
		!strings.HasPrefix(cfg.MessagingHubURL, "wss://") {
		return nil, fmt.Errorf("invalid MESSAGING_HUB_URL %q: must be a ws:// or wss:// url", cfg.MessagingHubURL)
	}

	cfg.MessagingHubListen = os.Getenv("MESSAGING_HUB_LISTEN")

	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// ValidateChatReady checks required fields when the live chat reader is
// enabled. Credentials stay optional: reading chat works anonymously.
func (c *Config) ValidateChatReady() error {
	if len(c.TwitchChannels) == 0 {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNELS (or TWITCH_CHANNEL)")
	}
	return nil
}

// ValidateHelixReady checks required fields for the Helix badge source.
func (c *Config) ValidateHelixReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
