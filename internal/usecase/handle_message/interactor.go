// Package handle_message turns chat lines into speak requests.
package handle_message

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"liveTTS/internal/domain"
	"liveTTS/internal/usecase/commands"
)

type Trigger string

const (
	// TriggerAll speaks every chat line that is not a command.
	TriggerAll Trigger = "all"
	// TriggerCommand speaks only "!tts <text>".
	TriggerCommand Trigger = "command"
)

func ParseTrigger(raw string) (Trigger, error) {
	switch Trigger(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TriggerCommand:
		return TriggerCommand, nil
	case TriggerAll:
		return TriggerAll, nil
	}
	return "", fmt.Errorf("handle_message: unknown chat trigger %q", raw)
}

type Interactor struct {
	router  *commands.Router
	speaker commands.Speaker
	tiers   domain.SubscriberTierResolver
	trigger Trigger
	logger  *log.Logger
}

// NewInteractor wires the chat entry point. tiers may be nil, in which case
// subscribers count as tier 1.
func NewInteractor(router *commands.Router, speaker commands.Speaker, tiers domain.SubscriberTierResolver, trigger Trigger, logger *log.Logger) *Interactor {
	if logger == nil {
		logger = log.Default()
	}
	if trigger == "" {
		trigger = TriggerCommand
	}
	return &Interactor{
		router:  router,
		speaker: speaker,
		tiers:   tiers,
		trigger: trigger,
		logger:  logger.WithPrefix("chat"),
	}
}

// Handle never reports pipeline failures to the chat; they are only logged.
func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	msg = uc.withTier(ctx, msg)
	level := msg.TeamLevel()

	handled, err := uc.router.Handle(ctx, msg, level)
	if handled {
		if err != nil {
			uc.logger.Debug("command not spoken", "platform", msg.Platform, "user", msg.Username, "err", err)
		}
		return nil
	}

	if uc.trigger != TriggerAll || uc.router.IsCommand(msg.Text) {
		return nil
	}

	res := uc.speaker.Speak(ctx, commands.SpeakRequest(msg, msg.Text, level, domain.SourceChat))
	if !res.Success {
		uc.logger.Debug("chat line not spoken", "platform", msg.Platform, "user", msg.Username, "error", res.Error, "reason", res.Reason)
	}
	return nil
}

func (uc *Interactor) withTier(ctx context.Context, msg domain.Message) domain.Message {
	if uc.tiers == nil || !msg.IsSubscriber || msg.SubscriberTier > 0 || msg.Platform != domain.PlatformTwitch {
		return msg
	}
	tier, err := uc.tiers.SubscriberTier(ctx, msg.UserID)
	if err != nil {
		uc.logger.Debug("subscriber tier lookup failed", "user", msg.Username, "err", err)
		return msg
	}
	msg.SubscriberTier = tier
	return msg
}
