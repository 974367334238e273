package permissions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"liveTTS/internal/domain"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]domain.UserTTSSettings
}

func newMemRepo() *memRepo { return &memRepo{users: map[string]domain.UserTTSSettings{}} }

func (r *memRepo) GetTTSUser(_ context.Context, id string) (*domain.UserTTSSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memRepo) UpsertTTSUser(_ context.Context, u *domain.UserTTSSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = *u
	return nil
}

func (r *memRepo) ListTTSUsers(_ context.Context, f domain.TTSUserFilter) ([]*domain.UserTTSSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.UserTTSSettings
	for _, u := range r.users {
		if f.Permission != nil && u.Permission != *f.Permission {
			continue
		}
		if f.WithVoice && u.AssignedVoiceID == "" {
			continue
		}
		if q := strings.ToLower(f.Search); q != "" && !strings.Contains(strings.ToLower(u.Username), q) && !strings.Contains(u.UserID, q) {
			continue
		}
		u := u
		out = append(out, &u)
	}
	return out, nil
}

func (r *memRepo) DeleteTTSUser(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[id]
	delete(r.users, id)
	return ok, nil
}

func TestBlacklistOverridesTeamLevel(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())
	if _, err := m.BlacklistUser(ctx, "u1", "troll"); err != nil {
		t.Fatal(err)
	}
	for level := 0; level <= 10; level++ {
		d, err := m.CheckPermission(ctx, "u1", "troll", level, 0)
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed || d.Reason != ReasonBlacklisted {
			t.Fatalf("level %d: got %+v", level, d)
		}
	}
}

func TestTeamLevelThreshold(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())
	for min := 0; min <= 4; min++ {
		for level := 0; level <= 4; level++ {
			d, err := m.CheckPermission(ctx, "viewer", "viewer", level, min)
			if err != nil {
				t.Fatal(err)
			}
			if level >= min && !d.Allowed {
				t.Fatalf("level %d min %d should be allowed", level, min)
			}
			if level < min && (d.Allowed || d.Reason != ReasonInsufficientTeamLevel) {
				t.Fatalf("level %d min %d: got %+v", level, min, d)
			}
		}
	}
}

func TestExplicitDecisionsBeatTeamLevel(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())

	_, _ = m.AllowUser(ctx, "fan", "fan")
	if d, _ := m.CheckPermission(ctx, "fan", "fan", 0, 3); !d.Allowed || d.Reason != ReasonAllowed {
		t.Fatalf("explicit allow ignored: %+v", d)
	}

	_, _ = m.DenyUser(ctx, "mod", "mod")
	if d, _ := m.CheckPermission(ctx, "mod", "mod", 3, 0); d.Allowed || d.Reason != ReasonDenied {
		t.Fatalf("explicit deny ignored: %+v", d)
	}
}

func TestAllowIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	m := NewManager(repo)

	_, _ = m.AllowUser(ctx, "u", "name")
	first := repo.users["u"]
	_, _ = m.AllowUser(ctx, "u", "name")
	second := repo.users["u"]

	if first.Permission != second.Permission || first.Username != second.Username || len(repo.users) != 1 {
		t.Fatalf("allow not idempotent: %+v vs %+v", first, second)
	}
}

func TestUnblacklistReturnsToUnset(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())

	_, _ = m.BlacklistUser(ctx, "u", "name")
	if ok, err := m.UnblacklistUser(ctx, "u", "name"); !ok || err != nil {
		t.Fatalf("unblacklist: %v %v", ok, err)
	}
	got, _ := m.GetUserSettings(ctx, "u")
	if got.Permission != domain.PermissionUnset {
		t.Fatalf("expected unset, got %q", got.Permission)
	}
	if d, _ := m.CheckPermission(ctx, "u", "name", 0, 1); d.Reason != ReasonInsufficientTeamLevel {
		t.Fatalf("unset user should fall through to team level: %+v", d)
	}
}

func TestAssignVoiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())

	if _, err := m.AssignVoice(ctx, "u", "name", "de_002", "TikTok"); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetUserSettings(ctx, "u")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.AssignedVoiceID != "de_002" || got.AssignedEngine != domain.EngineTikTok {
		t.Fatalf("unexpected assignment %+v", got)
	}
	if got.Permission != domain.PermissionUnset {
		t.Fatalf("assignment must not change permission, got %q", got.Permission)
	}

	if ok, _ := m.RemoveVoiceAssignment(ctx, "u"); !ok {
		t.Fatal("remove should succeed")
	}
	got, _ = m.GetUserSettings(ctx, "u")
	if got.HasVoiceAssignment() {
		t.Fatalf("assignment still present: %+v", got)
	}
	if ok, _ := m.RemoveVoiceAssignment(ctx, "nobody"); ok {
		t.Fatal("remove for unknown user should report false")
	}
}

func TestStatsAndFilter(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())

	_, _ = m.AllowUser(ctx, "a", "a")
	_, _ = m.DenyUser(ctx, "b", "b")
	_, _ = m.BlacklistUser(ctx, "c", "c")
	_, _ = m.AssignVoice(ctx, "d", "d", "en_us_001", "tiktok")
	_, _ = m.SetVolumeGain(ctx, "a", "a", 1.5)

	s, err := m.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 4, Allowed: 1, Denied: 1, Blacklisted: 1, Unset: 1, WithVoice: 1, CustomVolumes: 1}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}

	users, err := m.GetAllUsers(ctx, "blacklisted", "")
	if err != nil || len(users) != 1 || users[0].UserID != "c" {
		t.Fatalf("filter: %+v %v", users, err)
	}
	if _, err := m.GetAllUsers(ctx, "bogus", ""); err == nil {
		t.Fatal("unknown filter should fail")
	}
	if _, err := m.SetVolumeGain(ctx, "a", "a", 0); err == nil {
		t.Fatal("zero gain should fail")
	}

	if ok, _ := m.DeleteUser(ctx, "c"); !ok {
		t.Fatal("delete should succeed")
	}
	if got, _ := m.GetUserSettings(ctx, "c"); got != nil {
		t.Fatalf("deleted user still present: %+v", got)
	}
}

// slowRepo widens the gap between reading and writing a row.
type slowRepo struct {
	*memRepo
	delay time.Duration
}

func (r slowRepo) GetTTSUser(ctx context.Context, id string) (*domain.UserTTSSettings, error) {
	time.Sleep(r.delay)
	return r.memRepo.GetTTSUser(ctx, id)
}

func TestConcurrentUpdatesKeepBothChanges(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	m := NewManager(slowRepo{memRepo: repo, delay: 5 * time.Millisecond})

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("u%d", i)
		var wg sync.WaitGroup
		errs := make(chan error, 3)
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := m.BlacklistUser(ctx, id, "name")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := m.AssignVoice(ctx, id, "name", "de_002", "tiktok")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := m.SetVolumeGain(ctx, id, "name", 2)
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatal(err)
			}
		}

		got, _ := repo.GetTTSUser(ctx, id)
		if got == nil || got.Permission != domain.PermissionBlacklisted || got.AssignedVoiceID != "de_002" || got.VolumeGain != 2 {
			t.Fatalf("lost update for %s: %+v", id, got)
		}
	}
}

func TestGetAllUsersSearch(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newMemRepo())
	_, _ = m.AllowUser(ctx, "twitch:1", "StreamFan")
	_, _ = m.AllowUser(ctx, "kick:2", "lurker")
	_, _ = m.BlacklistUser(ctx, "twitch:3", "fanboy")

	users, err := m.GetAllUsers(ctx, "", "fan")
	if err != nil || len(users) != 2 {
		t.Fatalf("search: %+v %v", users, err)
	}
	users, err = m.GetAllUsers(ctx, "allowed", " FAN ")
	if err != nil || len(users) != 1 || users[0].UserID != "twitch:1" {
		t.Fatalf("search with filter: %+v %v", users, err)
	}
	users, err = m.GetAllUsers(ctx, "all", "kick:")
	if err != nil || len(users) != 1 || users[0].Username != "lurker" {
		t.Fatalf("search by id: %+v %v", users, err)
	}
}
