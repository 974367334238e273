package twitchinfra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTierResolverCachesAnswers(t *testing.T) {
	calls := 0
	tiers := map[string]string{"42": "2000"}
	r := newTierResolver(TierResolverConfig{BroadcasterID: "1"}, func(b, u string) (string, error) {
		calls++
		if b != "1" {
			t.Fatalf("broadcaster %q", b)
		}
		return tiers[u], nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tier, err := r.SubscriberTier(ctx, "42")
		if err != nil || tier != 2 {
			t.Fatalf("tier = %d, %v", tier, err)
		}
	}
	if tier, _ := r.SubscriberTier(ctx, "7"); tier != 0 {
		t.Fatalf("unsubscribed user tier = %d", tier)
	}
	r.SubscriberTier(ctx, "7")
	if calls != 2 {
		t.Fatalf("lookups = %d, want 2", calls)
	}
}

func TestTierResolverExpiry(t *testing.T) {
	calls := 0
	r := newTierResolver(TierResolverConfig{CacheTTL: 20 * time.Millisecond}, func(string, string) (string, error) {
		calls++
		return "1000", nil
	})
	r.SubscriberTier(context.Background(), "u")
	time.Sleep(60 * time.Millisecond)
	r.SubscriberTier(context.Background(), "u")
	if calls != 2 {
		t.Fatalf("lookups = %d, want 2", calls)
	}
}

func TestTierResolverErrorsAreNotCached(t *testing.T) {
	fail := true
	r := newTierResolver(TierResolverConfig{}, func(string, string) (string, error) {
		if fail {
			return "", errors.New("helix down")
		}
		return "3000", nil
	})
	if _, err := r.SubscriberTier(context.Background(), "u"); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	if tier, err := r.SubscriberTier(context.Background(), "u"); err != nil || tier != 3 {
		t.Fatalf("tier = %d, %v", tier, err)
	}
}

func TestNewTierResolverValidates(t *testing.T) {
	if _, err := NewTierResolver(TierResolverConfig{ClientID: "id"}); err == nil {
		t.Fatal("missing token accepted")
	}
}
