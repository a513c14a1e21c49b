package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.LogFormat != "text" || cfg.LogLevel != "info" {
		t.Errorf("log defaults = %q/%q, want text/info", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestLoadChannelList(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", " alpha, beta ,,gamma")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(cfg.TwitchChannels) != len(want) {
		t.Fatalf("TwitchChannels = %v, want %v", cfg.TwitchChannels, want)
	}
	for i := range want {
		if cfg.TwitchChannels[i] != want[i] {
			t.Errorf("TwitchChannels[%d] = %q, want %q", i, cfg.TwitchChannels[i], want[i])
		}
	}
}

func TestLoadLegacySingleChannel(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "")
	t.Setenv("TWITCH_CHANNEL", "solo")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.TwitchChannels) != 1 || cfg.TwitchChannels[0] != "solo" {
		t.Errorf("TwitchChannels = %v, want [solo]", cfg.TwitchChannels)
	}
}

func TestLoadRejectsBadHubURL(t *testing.T) {
	t.Setenv("MESSAGING_HUB_URL", "http://example.com/ws")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-websocket hub url")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "chan")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}

	t.Setenv("TWITCH_CHANNELS", "")
	t.Setenv("TWITCH_CHANNEL", "")
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when no channels configured")
	}
}

func TestValidateHelixReady(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "id")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	cfg, _ := Load()
	if err := cfg.ValidateHelixReady(); err != nil {
		t.Errorf("expected valid helix config, got %v", err)
	}

	t.Setenv("TWITCH_CLIENT_SECRET", "")
	cfg, _ = Load()
	if err := cfg.ValidateHelixReady(); err == nil {
		t.Errorf("expected error when missing helix secret")
	}
}
