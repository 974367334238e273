package domain

import "context"

// SubscriberTierResolver looks up a chatter's subscription tier (1..3, 0 when
// not subscribed) on platforms whose chat tags do not carry it.
type SubscriberTierResolver interface {
	SubscriberTier(ctx context.Context, userID string) (int, error)
}
