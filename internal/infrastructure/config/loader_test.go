package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" || cfg.TTS.MaxQueueSize != 50 || cfg.TTS.RateLimit != 3 {
		t.Fatalf("defaults %+v", cfg)
	}
	if cfg.TTS.RateLimitWindow != time.Minute || cfg.TTS.Gap != 250*time.Millisecond {
		t.Fatalf("durations %v %v", cfg.TTS.RateLimitWindow, cfg.TTS.Gap)
	}
	if len(cfg.Engines.FallbackOrder) != 4 || cfg.Engines.FallbackOrder[0] != "elevenlabs" {
		t.Fatalf("fallback order %v", cfg.Engines.FallbackOrder)
	}
	if cfg.Chat.Trigger != "command" || !cfg.Engines.TikTok.Enabled {
		t.Fatalf("chat %+v tiktok %+v", cfg.Chat, cfg.Engines.TikTok)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("TTS_MAX_QUEUE_SIZE", "10")
	t.Setenv("TWITCH_BOT_CHANNELS", "somechannel, other")
	t.Setenv("TTS_CHAT_TRIGGER", "all")
	t.Setenv("ELEVENLABS_API_KEY", "xi-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TTS.MaxQueueSize != 10 {
		t.Fatalf("max queue size %d", cfg.TTS.MaxQueueSize)
	}
	if len(cfg.Twitch.Channels) != 2 || cfg.Twitch.Channels[1] != "other" {
		t.Fatalf("channels %q", cfg.Twitch.Channels)
	}
	if cfg.Chat.Trigger != "all" || cfg.Engines.ElevenLabs.APIKey != "xi-key" {
		t.Fatalf("legacy names not bound: %+v %+v", cfg.Chat, cfg.Engines.ElevenLabs)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livetts.yaml")
	yaml := `
tts:
  overflow: evict
  rate_limit_window: 30s
kick:
  chatroom_id: 5
engines:
  fallback_order: [google, tiktok]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TTS.Overflow != "evict" || cfg.TTS.RateLimitWindow != 30*time.Second || cfg.Kick.ChatroomID != 5 {
		t.Fatalf("file values %+v %+v", cfg.TTS, cfg.Kick)
	}
	if len(cfg.Engines.FallbackOrder) != 2 {
		t.Fatalf("fallback order %v", cfg.Engines.FallbackOrder)
	}
	if cfg.TTS.MaxQueueSize != 50 {
		t.Fatal("defaults lost when a file is present")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
