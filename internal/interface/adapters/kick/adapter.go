// Package kickadapter feeds Kick chat into the message handler.
package kickadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	kickchatwrapper "github.com/johanvandegriff/kick-chat-wrapper"

	"liveTTS/internal/domain"
)

type Config struct {
	// ChatroomID is not the channel id; it is the "chatroom.id" field of
	// https://kick.com/api/v2/channels/{slug}.
	ChatroomID int

	// BroadcasterUserID marks the channel owner's messages.
	BroadcasterUserID int
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type Adapter struct {
	cfg    Config
	logger *log.Logger

	mu      sync.RWMutex
	handler MessageHandler
}

func NewAdapter(cfg Config, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{cfg: cfg, logger: logger.WithPrefix("kick")}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Start joins the chatroom and blocks until ctx ends or the socket closes.
func (a *Adapter) Start(ctx context.Context) error {
	if a.cfg.ChatroomID == 0 {
		return errors.New("kick: chatroom id not configured")
	}

	ws, err := kickchatwrapper.NewClient()
	if err != nil {
		return fmt.Errorf("kick: new client: %w", err)
	}
	defer ws.Close()

	if err := ws.JoinChannelByID(a.cfg.ChatroomID); err != nil {
		return fmt.Errorf("kick: join chatroom %d: %w", a.cfg.ChatroomID, err)
	}
	messages := ws.ListenForMessages()
	a.logger.Info("connected", "chatroom", a.cfg.ChatroomID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				a.logger.Warn("message channel closed")
				return errors.New("kick: chat connection closed")
			}
			a.mu.RLock()
			handler := a.handler
			a.mu.RUnlock()
			if handler == nil {
				continue
			}
			if err := handler(ctx, mapChatMessage(m, a.cfg.BroadcasterUserID)); err != nil {
				a.logger.Debug("handler failed", "user", m.Sender.Username, "err", err)
			}
		}
	}
}

func mapChatMessage(m kickchatwrapper.ChatMessage, broadcasterUserID int) domain.Message {
	sender := m.Sender
	msg := domain.Message{
		Platform:        domain.PlatformKick,
		ChannelID:       strconv.Itoa(m.ChatroomID),
		UserID:          strconv.Itoa(sender.ID),
		Username:        sender.Username,
		Text:            m.Content,
		IsPlatformOwner: broadcasterUserID != 0 && sender.ID == broadcasterUserID,
	}

	for _, b := range sender.Identity.Badges {
		switch strings.ToLower(b.Type) {
		case "broadcaster":
			msg.IsPlatformOwner = true
		case "moderator":
			msg.IsPlatformMod = true
		case "vip":
			msg.IsPlatformVip = true
		case "subscriber", "founder", "og":
			msg.IsSubscriber = true
		}
	}
	return msg
}
