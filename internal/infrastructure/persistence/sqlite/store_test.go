package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"liveTTS/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data", "tts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndGetTTSUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if got, err := store.GetTTSUser(ctx, "missing"); err != nil || got != nil {
		t.Fatalf("missing user: got %v, %v", got, err)
	}

	user := &domain.UserTTSSettings{
		UserID:          "42",
		Username:        "alice",
		Permission:      domain.PermissionAllowed,
		AssignedVoiceID: "de_002",
		AssignedEngine:  domain.EngineTikTok,
	}
	if err := store.UpsertTTSUser(ctx, user); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetTTSUser(ctx, "42")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Permission != domain.PermissionAllowed || got.AssignedVoiceID != "de_002" || got.AssignedEngine != domain.EngineTikTok {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.VolumeGain != 1 {
		t.Fatalf("default gain should be 1, got %v", got.VolumeGain)
	}

	got.AssignedVoiceID = ""
	got.AssignedEngine = ""
	got.VolumeGain = 0.5
	if err := store.UpsertTTSUser(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := store.GetTTSUser(ctx, "42")
	if again.HasVoiceAssignment() || again.VolumeGain != 0.5 {
		t.Fatalf("update not applied: %+v", again)
	}
	if !again.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("created_at changed: %v != %v", again.CreatedAt, got.CreatedAt)
	}
}

func TestListTTSUsersFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seed := []*domain.UserTTSSettings{
		{UserID: "1", Username: "Alice", Permission: domain.PermissionAllowed, AssignedVoiceID: "en_us_001"},
		{UserID: "2", Username: "bob", Permission: domain.PermissionBlacklisted},
		{UserID: "3", Username: "carol", Permission: domain.PermissionAllowed},
	}
	for _, u := range seed {
		if err := store.UpsertTTSUser(ctx, u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := store.ListTTSUsers(ctx, domain.TTSUserFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %d %v", len(all), err)
	}

	allowed := domain.PermissionAllowed
	got, _ := store.ListTTSUsers(ctx, domain.TTSUserFilter{Permission: &allowed})
	if len(got) != 2 {
		t.Fatalf("allowed filter: %d", len(got))
	}

	got, _ = store.ListTTSUsers(ctx, domain.TTSUserFilter{WithVoice: true})
	if len(got) != 1 || got[0].UserID != "1" {
		t.Fatalf("voice filter: %+v", got)
	}

	got, _ = store.ListTTSUsers(ctx, domain.TTSUserFilter{Search: "ALI"})
	if len(got) != 1 || got[0].Username != "Alice" {
		t.Fatalf("search filter: %+v", got)
	}
}

func TestDeleteTTSUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.UpsertTTSUser(ctx, &domain.UserTTSSettings{UserID: "1", Username: "a"})
	ok, err := store.DeleteTTSUser(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.DeleteTTSUser(ctx, "1")
	if err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if v, err := store.GetSetting(ctx, "tts_settings"); err != nil || v != "" {
		t.Fatalf("missing key: %q %v", v, err)
	}
	if err := store.SetSetting(ctx, "tts_settings", `{"enabled":true}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetSetting(ctx, "tts_settings", `{"enabled":false}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := store.GetSetting(ctx, "tts_settings"); v != `{"enabled":false}` {
		t.Fatalf("got %q", v)
	}
	if err := store.SetSetting(ctx, " ", "x"); err == nil {
		t.Fatal("empty key should fail")
	}
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tts.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.UpsertTTSUser(ctx, &domain.UserTTSSettings{UserID: "7", Username: "bob", VolumeGain: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	store.Close()

	store, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	got, err := store.GetTTSUser(ctx, "7")
	if err != nil || got == nil || got.VolumeGain != 2 {
		t.Fatalf("row after reopen: %+v %v", got, err)
	}
}
