package commands

import (
	"context"
	"fmt"
	"strings"

	"liveTTS/internal/domain"
	ttsusecase "liveTTS/internal/usecase/tts"
)

// ModeratorLevel is the team level allowed to control playback from chat.
const ModeratorLevel = 3

type Speaker interface {
	Speak(ctx context.Context, req domain.SpeakRequest) ttsusecase.SpeakResult
	SetEnabled(ctx context.Context, enabled bool) error
}

type QueueControl interface {
	SkipCurrent() bool
	Clear() int
}

// TTSCommand handles "!tts <text>". Moderators additionally get
// "!tts skip", "!tts clear", "!tts on" and "!tts off".
type TTSCommand struct {
	speaker Speaker
	queue   QueueControl
}

func NewTTSCommand(speaker Speaker, queue QueueControl) *TTSCommand {
	return &TTSCommand{speaker: speaker, queue: queue}
}

func (c *TTSCommand) Name() string { return "tts" }

func (c *TTSCommand) Aliases() []string { return []string{"say"} }

func (c *TTSCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	if cmdCtx.Raw == "" {
		return nil
	}

	if cmdCtx.TeamLevel >= ModeratorLevel && len(cmdCtx.Args) == 1 {
		switch strings.ToLower(cmdCtx.Args[0]) {
		case "skip":
			if c.queue != nil {
				c.queue.SkipCurrent()
			}
			return nil
		case "clear":
			if c.queue != nil {
				c.queue.Clear()
			}
			return nil
		case "on":
			return c.speaker.SetEnabled(ctx, true)
		case "off":
			return c.speaker.SetEnabled(ctx, false)
		}
	}

	res := c.speaker.Speak(ctx, SpeakRequest(cmdCtx.Message, cmdCtx.Raw, cmdCtx.TeamLevel, domain.SourceCommand))
	if !res.Success {
		return fmt.Errorf("tts command: %w", res.Err())
	}
	return nil
}

// SpeakRequest builds the pipeline request for a chat line. User ids are
// scoped by platform so permissions never collide across platforms.
func SpeakRequest(msg domain.Message, text string, teamLevel int, source domain.SpeakSource) domain.SpeakRequest {
	userID := ""
	if msg.UserID != "" {
		userID = string(msg.Platform) + ":" + msg.UserID
	}
	return domain.SpeakRequest{
		Text:         text,
		UserID:       userID,
		Username:     msg.Username,
		Source:       source,
		TeamLevel:    teamLevel,
		IsSubscriber: msg.IsSubscriber || msg.SubscriberTier > 0,
	}
}
