// Package twitchadapter feeds Twitch chat into the message handler.
package twitchadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adeithe/go-twitch/irc"
	"github.com/charmbracelet/log"

	"liveTTS/internal/domain"
)

type Config struct {
	// Username and OAuthToken are optional; without them the connection is
	// read-only and anonymous.
	Username   string
	OAuthToken string
	Channels   []string
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type Adapter struct {
	cfg    Config
	logger *log.Logger

	mu      sync.RWMutex
	handler MessageHandler
	conn    *irc.Conn
}

func NewAdapter(cfg Config, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{cfg: cfg, logger: logger.WithPrefix("twitch")}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Start connects, joins the configured channels and blocks until ctx ends.
func (a *Adapter) Start(ctx context.Context) error {
	if len(a.cfg.Channels) == 0 {
		return errors.New("twitch: no channels configured")
	}

	conn := &irc.Conn{}
	if a.cfg.Username != "" && a.cfg.OAuthToken != "" {
		if err := conn.SetLogin(a.cfg.Username, a.cfg.OAuthToken); err != nil {
			return fmt.Errorf("twitch: set login: %w", err)
		}
	}

	conn.OnMessage(func(cm irc.ChatMessage) {
		a.mu.RLock()
		handler := a.handler
		a.mu.RUnlock()
		if handler == nil {
			return
		}
		if err := handler(ctx, mapChatMessage(cm)); err != nil {
			a.logger.Debug("handler failed", "user", cm.Sender.DisplayName, "err", err)
		}
	})

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("twitch: connect: %w", err)
	}
	if err := conn.Join(a.cfg.Channels...); err != nil {
		conn.Close()
		return fmt.Errorf("twitch: join: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	a.logger.Info("connected", "channels", a.cfg.Channels, "anonymous", a.cfg.OAuthToken == "")

	<-ctx.Done()

	a.mu.Lock()
	a.conn.Close()
	a.conn = nil
	a.mu.Unlock()
	return ctx.Err()
}

func mapChatMessage(cm irc.ChatMessage) domain.Message {
	sender := cm.Sender
	tags := cm.IRCMessage.Tags

	return domain.Message{
		Platform:        domain.PlatformTwitch,
		ChannelID:       cm.Channel,
		UserID:          strconv.FormatInt(sender.ID, 10),
		Username:        sender.DisplayName,
		Text:            cm.Text,
		IsPlatformOwner: sender.IsBroadcaster,
		IsPlatformMod:   sender.IsModerator,
		IsPlatformVip:   sender.IsVIP,
		IsSubscriber:    tags["subscriber"] == "1" || hasBadge(tags["badges"], "subscriber", "founder"),
	}
}

// hasBadge reports whether the raw badges tag ("name/version,...") carries
// one of names.
func hasBadge(raw string, names ...string) bool {
	for _, badge := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(badge, "/")
		for _, want := range names {
			if name == want {
				return true
			}
		}
	}
	return false
}
