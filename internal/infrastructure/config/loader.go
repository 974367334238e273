// Package config loads settings from .env, an optional config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Engines  EnginesConfig  `mapstructure:"engines"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Twitch   TwitchConfig   `mapstructure:"twitch"`
	Kick     KickConfig     `mapstructure:"kick"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TTSConfig seeds the runtime settings. Values saved through the API win
// over these at startup.
type TTSConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	DefaultEngine      string        `mapstructure:"default_engine"`
	DefaultVoice       string        `mapstructure:"default_voice"`
	Volume             float64       `mapstructure:"volume"`
	Speed              float64       `mapstructure:"speed"`
	MaxTextLength      int           `mapstructure:"max_text_length"`
	MinTeamLevel       int           `mapstructure:"min_team_level"`
	ProfanityMode      string        `mapstructure:"profanity_mode"`
	ProfanityWords     []string      `mapstructure:"profanity_words"`
	AutoLanguageDetect bool          `mapstructure:"auto_language_detect"`
	FallbackLanguage   string        `mapstructure:"fallback_language"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
	RateLimit          int           `mapstructure:"rate_limit"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	Overflow           string        `mapstructure:"overflow"`
	Gap                time.Duration `mapstructure:"gap"`
	DebugBuffer        int           `mapstructure:"debug_buffer"`
}

type EnginesConfig struct {
	Timeout       time.Duration    `mapstructure:"timeout"`
	FallbackOrder []string         `mapstructure:"fallback_order"`
	TikTok        TikTokConfig     `mapstructure:"tiktok"`
	Google        APIKeyConfig     `mapstructure:"google"`
	Speechify     APIKeyConfig     `mapstructure:"speechify"`
	ElevenLabs    ElevenLabsConfig `mapstructure:"elevenlabs"`
}

type TikTokConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Endpoint          string `mapstructure:"endpoint"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type ElevenLabsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
}

type AudioConfig struct {
	// LocalPlayback plays items on this machine's sound device in addition to
	// sending them to overlays.
	LocalPlayback bool `mapstructure:"local_playback"`
	SampleRate    int  `mapstructure:"sample_rate"`
}

type ChatConfig struct {
	Trigger string `mapstructure:"trigger"`
	Prefix  string `mapstructure:"prefix"`
}

type TwitchConfig struct {
	Username      string   `mapstructure:"username"`
	OAuthToken    string   `mapstructure:"oauth_token"`
	Channels      []string `mapstructure:"channels"`
	ClientID      string   `mapstructure:"client_id"`
	APIToken      string   `mapstructure:"api_token"`
	BroadcasterID string   `mapstructure:"broadcaster_id"`
}

type KickConfig struct {
	ChatroomID        int `mapstructure:"chatroom_id"`
	BroadcasterUserID int `mapstructure:"broadcaster_user_id"`
}

// envAliases binds the names of the conventional bot env vars alongside the
// ones derived from each config key.
var envAliases = map[string][]string{
	"twitch.username":            {"TWITCH_BOT_USERNAME"},
	"twitch.oauth_token":         {"TWITCH_BOT_ACCESS_TOKEN"},
	"twitch.channels":            {"TWITCH_BOT_CHANNELS"},
	"twitch.client_id":           {"TWITCH_CLIENT_ID"},
	"twitch.api_token":           {"TWITCH_API_ACCESS_TOKEN"},
	"twitch.broadcaster_id":      {"TWITCH_BROADCASTER_ID"},
	"chat.trigger":               {"TTS_CHAT_TRIGGER"},
	"engines.google.api_key":     {"GOOGLE_TTS_API_KEY"},
	"engines.speechify.api_key":  {"SPEECHIFY_API_KEY"},
	"engines.elevenlabs.api_key": {"ELEVENLABS_API_KEY"},
	"log.level":                  {"LOG_LEVEL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "data/livetts.db")
	v.SetDefault("log.level", "info")

	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.default_engine", "tiktok")
	v.SetDefault("tts.default_voice", "en_us_001")
	v.SetDefault("tts.volume", 1.0)
	v.SetDefault("tts.speed", 1.0)
	v.SetDefault("tts.max_text_length", 300)
	v.SetDefault("tts.min_team_level", 0)
	v.SetDefault("tts.profanity_mode", "moderate")
	v.SetDefault("tts.profanity_words", []string{})
	v.SetDefault("tts.auto_language_detect", true)
	v.SetDefault("tts.fallback_language", "en")
	v.SetDefault("tts.max_queue_size", 50)
	v.SetDefault("tts.rate_limit", 3)
	v.SetDefault("tts.rate_limit_window", "60s")
	v.SetDefault("tts.overflow", "reject")
	v.SetDefault("tts.gap", "250ms")
	v.SetDefault("tts.debug_buffer", 200)

	v.SetDefault("engines.timeout", "15s")
	v.SetDefault("engines.fallback_order", []string{"elevenlabs", "speechify", "google", "tiktok"})
	v.SetDefault("engines.tiktok.enabled", true)
	v.SetDefault("engines.tiktok.endpoint", "")
	v.SetDefault("engines.tiktok.requests_per_minute", 60)
	v.SetDefault("engines.google.api_key", "")
	v.SetDefault("engines.speechify.api_key", "")
	v.SetDefault("engines.elevenlabs.api_key", "")
	v.SetDefault("engines.elevenlabs.model_id", "")

	v.SetDefault("audio.local_playback", false)
	v.SetDefault("audio.sample_rate", 44100)

	v.SetDefault("chat.trigger", "command")
	v.SetDefault("chat.prefix", "!")

	v.SetDefault("twitch.username", "")
	v.SetDefault("twitch.oauth_token", "")
	v.SetDefault("twitch.channels", []string{})
	v.SetDefault("twitch.client_id", "")
	v.SetDefault("twitch.api_token", "")
	v.SetDefault("twitch.broadcaster_id", "")

	v.SetDefault("kick.chatroom_id", 0)
	v.SetDefault("kick.broadcaster_user_id", 0)
}

// Load reads .env first, then configFile (or livetts.yaml in the working
// directory or ./configs when empty), then the environment. Environment
// variables are the upper-cased keys with dots replaced by underscores,
// e.g. TTS_MAX_QUEUE_SIZE.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("livetts")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		envs := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Twitch.Channels = splitList(cfg.Twitch.Channels)
	cfg.Engines.FallbackOrder = splitList(cfg.Engines.FallbackOrder)
	cfg.TTS.ProfanityWords = splitList(cfg.TTS.ProfanityWords)
	return &cfg, nil
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
