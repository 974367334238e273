package domain

type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
	PlatformWeb    Platform = "web"
)

// Message is a chat line as delivered by a platform adapter.
type Message struct {
	Platform  Platform
	ChannelID string
	UserID    string
	Username  string
	Text      string

	// Flags filled by the adapter from platform badges.
	IsPlatformOwner bool
	IsPlatformMod   bool
	IsPlatformVip   bool
	IsSubscriber    bool

	// SubscriberTier is 1..3 when known, 0 otherwise.
	SubscriberTier int
}

// TeamLevel ranks the sender for TTS gating.
func (m Message) TeamLevel() int {
	switch {
	case m.IsPlatformOwner:
		return 4
	case m.IsPlatformMod:
		return 3
	case m.IsPlatformVip:
		return 2
	case m.SubscriberTier > 0:
		return m.SubscriberTier
	case m.IsSubscriber:
		return 1
	}
	return 0
}
