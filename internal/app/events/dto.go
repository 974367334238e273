package events

import (
	"time"

	"liveTTS/internal/domain"
)

// ChatMessageDTO is the chat line forwarded to overlays.
type ChatMessageDTO struct {
	Platform        string `json:"platform"`
	ChannelID       string `json:"channel_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	IsPlatformOwner bool   `json:"is_platform_owner"`
	IsPlatformMod   bool   `json:"is_platform_mod"`
	IsPlatformVip   bool   `json:"is_platform_vip"`
	IsSubscriber    bool   `json:"is_subscriber"`
	TeamLevel       int    `json:"team_level"`
	Timestamp       string `json:"timestamp"`
}

func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	return ChatMessageDTO{
		Platform:        string(msg.Platform),
		ChannelID:       msg.ChannelID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		Text:            msg.Text,
		IsPlatformOwner: msg.IsPlatformOwner,
		IsPlatformMod:   msg.IsPlatformMod,
		IsPlatformVip:   msg.IsPlatformVip,
		IsSubscriber:    msg.IsSubscriber,
		TeamLevel:       msg.TeamLevel(),
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}
}
