package queue

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxTrackedUsers = 4096

// userLimiter keeps a sliding window log of attempts per user: a user may
// make at most limit attempts within any window. Idle users expire after
// window, when every logged attempt would have been pruned anyway.
type userLimiter struct {
	limit  int
	window time.Duration
	users  *expirable.LRU[string, []time.Time]
}

func newUserLimiter(limit int, window time.Duration) *userLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &userLimiter{
		limit:  limit,
		window: window,
		users:  expirable.NewLRU[string, []time.Time](maxTrackedUsers, nil, window),
	}
}

// allow logs an attempt for userID at now unless the user already made limit
// attempts in (now-window, now]. Refused attempts are not logged. Callers
// must serialize calls.
func (l *userLimiter) allow(userID string, now time.Time) bool {
	if l == nil || userID == "" {
		return true
	}
	attempts, _ := l.users.Get(userID)

	cutoff := now.Add(-l.window)
	kept := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= l.limit {
		l.users.Add(userID, kept)
		return false
	}
	l.users.Add(userID, append(kept, now))
	return true
}

func (l *userLimiter) reset() {
	if l != nil {
		l.users.Purge()
	}
}
