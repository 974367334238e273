package twitchinfra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nicklaw5/helix/v2"
)

const (
	DefaultTierCacheSize = 1024
	DefaultTierCacheTTL  = 10 * time.Minute
)

type TierResolverConfig struct {
	ClientID string
	// UserAccessToken belongs to the broadcaster and needs the
	// channel:read:subscriptions scope.
	UserAccessToken string
	BroadcasterID   string
	// APIBaseURL overrides the Helix endpoint.
	APIBaseURL string
	CacheSize  int
	CacheTTL   time.Duration
}

// TierResolver resolves subscription tiers through Helix and caches the
// answers, including "not subscribed".
type TierResolver struct {
	broadcasterID string
	lookup        func(broadcasterID, userID string) (string, error)
	cache         *expirable.LRU[string, int]
}

func NewTierResolver(cfg TierResolverConfig) (*TierResolver, error) {
	if cfg.ClientID == "" || cfg.UserAccessToken == "" || cfg.BroadcasterID == "" {
		return nil, errors.New("helix: client id, user token and broadcaster id are required")
	}
	client, err := helix.NewClient(&helix.Options{
		ClientID:        cfg.ClientID,
		UserAccessToken: cfg.UserAccessToken,
		APIBaseURL:      cfg.APIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: new client: %w", err)
	}
	return newTierResolver(cfg, helixLookup(client)), nil
}

func newTierResolver(cfg TierResolverConfig, lookup func(string, string) (string, error)) *TierResolver {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultTierCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultTierCacheTTL
	}
	return &TierResolver{
		broadcasterID: cfg.BroadcasterID,
		lookup:        lookup,
		cache:         expirable.NewLRU[string, int](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

func (r *TierResolver) SubscriberTier(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	if tier, ok := r.cache.Get(userID); ok {
		return tier, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := r.lookup(r.broadcasterID, userID)
	if err != nil {
		return 0, err
	}
	tier := parseTier(raw)
	r.cache.Add(userID, tier)
	return tier, nil
}

func helixLookup(client *helix.Client) func(string, string) (string, error) {
	return func(broadcasterID, userID string) (string, error) {
		resp, err := client.GetSubscriptions(&helix.SubscriptionsParams{
			BroadcasterID: broadcasterID,
			UserID:        []string{userID},
		})
		if err != nil {
			return "", fmt.Errorf("helix: get subscriptions: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("helix: get subscriptions failed (%d: %s) %s",
				resp.StatusCode, resp.Error, resp.ErrorMessage)
		}
		for _, sub := range resp.Data.Subscriptions {
			if sub.UserID == userID {
				return sub.Tier, nil
			}
		}
		return "", nil
	}
}

// parseTier maps Helix tier strings ("1000", "2000", "3000") to 1..3.
func parseTier(raw string) int {
	switch raw {
	case "1000":
		return 1
	case "2000":
		return 2
	case "3000":
		return 3
	}
	return 0
}
