package handle_message

import (
	"context"
	"errors"
	"testing"

	"liveTTS/internal/domain"
	"liveTTS/internal/usecase/commands"
	ttsusecase "liveTTS/internal/usecase/tts"
)

type fakeSpeaker struct {
	requests []domain.SpeakRequest
	enabled  *bool
	fail     bool
}

func (f *fakeSpeaker) Speak(_ context.Context, req domain.SpeakRequest) ttsusecase.SpeakResult {
	f.requests = append(f.requests, req)
	if f.fail {
		return ttsusecase.SpeakResult{Error: ttsusecase.CodePermissionDenied}
	}
	return ttsusecase.SpeakResult{Success: true}
}

func (f *fakeSpeaker) SetEnabled(_ context.Context, enabled bool) error {
	f.enabled = &enabled
	return nil
}

type fakeQueue struct{ skipped, cleared int }

func (q *fakeQueue) SkipCurrent() bool { q.skipped++; return true }
func (q *fakeQueue) Clear() int        { q.cleared++; return 0 }

type fakeTiers struct {
	tier  int
	err   error
	calls int
}

func (f *fakeTiers) SubscriberTier(context.Context, string) (int, error) {
	f.calls++
	return f.tier, f.err
}

func newInteractor(trigger Trigger, speaker *fakeSpeaker, q *fakeQueue, tiers domain.SubscriberTierResolver) *Interactor {
	router := commands.NewRouter("!")
	router.Register(commands.NewTTSCommand(speaker, q))
	return NewInteractor(router, speaker, tiers, trigger, nil)
}

func chat(text string) domain.Message {
	return domain.Message{Platform: domain.PlatformTwitch, UserID: "42", Username: "viewer", Text: text}
}

func TestCommandTrigger(t *testing.T) {
	speaker := &fakeSpeaker{}
	uc := newInteractor(TriggerCommand, speaker, &fakeQueue{}, nil)
	ctx := context.Background()

	uc.Handle(ctx, chat("just chatting"))
	uc.Handle(ctx, chat("!tts hello   there"))
	uc.Handle(ctx, chat("!TTS"))

	if len(speaker.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(speaker.requests))
	}
	req := speaker.requests[0]
	if req.Text != "hello   there" || req.Source != domain.SourceCommand || req.UserID != "twitch:42" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestAllTrigger(t *testing.T) {
	speaker := &fakeSpeaker{}
	uc := newInteractor(TriggerAll, speaker, &fakeQueue{}, nil)
	ctx := context.Background()

	uc.Handle(ctx, chat("hello stream"))
	uc.Handle(ctx, chat("!uptime"))
	uc.Handle(ctx, chat("   "))

	if len(speaker.requests) != 1 || speaker.requests[0].Source != domain.SourceChat {
		t.Fatalf("requests %+v", speaker.requests)
	}
}

func TestFailuresAreSilent(t *testing.T) {
	speaker := &fakeSpeaker{fail: true}
	uc := newInteractor(TriggerAll, speaker, &fakeQueue{}, nil)
	if err := uc.Handle(context.Background(), chat("hello")); err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	if err := uc.Handle(context.Background(), chat("!tts hello")); err != nil {
		t.Fatalf("Handle returned %v", err)
	}
}

func TestModeratorControls(t *testing.T) {
	speaker := &fakeSpeaker{}
	q := &fakeQueue{}
	uc := newInteractor(TriggerCommand, speaker, q, nil)
	ctx := context.Background()

	mod := chat("!tts skip")
	mod.IsPlatformMod = true
	uc.Handle(ctx, mod)
	mod.Text = "!tts off"
	uc.Handle(ctx, mod)

	if q.skipped != 1 || speaker.enabled == nil || *speaker.enabled {
		t.Fatalf("skip=%d enabled=%v", q.skipped, speaker.enabled)
	}
	if len(speaker.requests) != 0 {
		t.Fatal("control words must not be spoken")
	}

	uc.Handle(ctx, chat("!tts skip"))
	if q.skipped != 1 || len(speaker.requests) != 1 {
		t.Fatal("viewers cannot skip; their text is spoken")
	}
}

func TestSubscriberTierResolution(t *testing.T) {
	speaker := &fakeSpeaker{}
	tiers := &fakeTiers{tier: 3}
	uc := newInteractor(TriggerAll, speaker, &fakeQueue{}, tiers)
	ctx := context.Background()

	sub := chat("hello")
	sub.IsSubscriber = true
	uc.Handle(ctx, sub)
	if got := speaker.requests[0].TeamLevel; got != 3 {
		t.Fatalf("team level = %d, want 3", got)
	}

	tiers.err = errors.New("helix down")
	uc.Handle(ctx, sub)
	if got := speaker.requests[1].TeamLevel; got != 1 {
		t.Fatalf("team level on lookup error = %d, want 1", got)
	}

	uc.Handle(ctx, chat("not a sub"))
	if tiers.calls != 2 {
		t.Fatalf("tier lookups = %d, want 2", tiers.calls)
	}
}

func TestParseTrigger(t *testing.T) {
	if tr, err := ParseTrigger(""); err != nil || tr != TriggerCommand {
		t.Fatalf("default trigger %q, %v", tr, err)
	}
	if _, err := ParseTrigger("sometimes"); err == nil {
		t.Fatal("unknown trigger accepted")
	}
}
