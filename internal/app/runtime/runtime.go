package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"liveTTS/internal/app/events"
	"liveTTS/internal/app/tts/debuglog"
	"liveTTS/internal/app/tts/queue"
	"liveTTS/internal/domain"
	"liveTTS/internal/infrastructure/audio"
	"liveTTS/internal/infrastructure/config"
	sqlitestorage "liveTTS/internal/infrastructure/persistence/sqlite"
	twitchinfra "liveTTS/internal/infrastructure/platform/twitch"
	"liveTTS/internal/infrastructure/tts/engines"
	kickadapter "liveTTS/internal/interface/adapters/kick"
	twitchadapter "liveTTS/internal/interface/adapters/twitch"
	ws "liveTTS/internal/interface/api/ws"
	"liveTTS/internal/usecase/commands"
	"liveTTS/internal/usecase/handle_message"
	ttsusecase "liveTTS/internal/usecase/tts"
	"liveTTS/internal/usecase/tts/langdetect"
	"liveTTS/internal/usecase/tts/permissions"
	"liveTTS/internal/usecase/tts/profanity"
)

type Options struct {
	// Config is loaded from the default locations when nil.
	Config *config.Config
	Logger *log.Logger
}

type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger *log.Logger

	store    *sqlitestorage.Store
	bus      *events.Bus
	debug    *debuglog.Ring
	queue    *queue.Manager
	ttsServ  *ttsusecase.Service
	wsServer *ws.Server
	speaker  *audio.Speaker
	speak    *workers

	wg      sync.WaitGroup
	started bool
}

// Start wires every component and launches the background loops. The
// returned runtime runs until ctx is cancelled or Stop is called.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	store, err := sqlitestorage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("runtime: open store: %w", err)
	}

	runtimeCtx, cancel := context.WithCancel(ctx)
	run := &Runtime{
		ctx:    runtimeCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger,
		store:  store,
		speak:  newWorkers(runtimeCtx, maxConcurrentSpeak),
	}

	if err := run.wire(); err != nil {
		cancel()
		if run.queue != nil {
			run.queue.Stop()
		}
		run.wg.Wait()
		_ = store.Close()
		return nil, err
	}
	run.started = true
	logger.Info("liveTTS running", "addr", cfg.Server.Addr, "engines", run.ttsServ.Engines().Names())
	return run, nil
}

func (r *Runtime) wire() error {
	cfg, logger := r.cfg, r.logger

	r.bus = events.NewBus(logger)
	r.debug = debuglog.New(cfg.TTS.DebugBuffer, r.bus, events.TopicTTSDebug)

	overflow, err := queue.ParseOverflowPolicy(cfg.TTS.Overflow)
	if err != nil {
		return err
	}
	r.queue = queue.New(queue.Config{
		MaxSize:         cfg.TTS.MaxQueueSize,
		RateLimit:       cfg.TTS.RateLimit,
		RateLimitWindow: cfg.TTS.RateLimitWindow,
		Overflow:        overflow,
		Gap:             cfg.TTS.Gap,
		Publisher:       r.bus,
		Logger:          logger,
	})

	mode, err := profanity.ParseMode(cfg.TTS.ProfanityMode)
	if err != nil {
		return err
	}
	seed, err := settingsFromConfig(cfg)
	if err != nil {
		return err
	}

	perms := permissions.NewManager(r.store)
	svc, err := ttsusecase.NewService(ttsusecase.Deps{
		Permissions: perms,
		Filter:      profanity.NewFilter(mode, cfg.TTS.ProfanityWords...),
		Detector:    langdetect.NewDetector(nil, langdetect.Config{}),
		Engines:     NewEngineRegistry(cfg, seed.Credentials),
		Queue:       r.queue,
		Repo:        r.store,
		Publisher:   r.bus,
		Tracer:      r.debug,
		Duration:    audio.ProbeOrEstimate,
		Logger:      logger,
		Settings:    seed,
	})
	if err != nil {
		return err
	}
	r.ttsServ = svc

	// Stored settings are applied before the hook is installed, so the
	// collaborators are synced once by hand.
	if err := svc.LoadSettings(r.ctx); err != nil {
		logger.Warn("stored tts settings ignored", "err", err)
	}
	r.applySettings(svc.Settings())
	svc.SetOnSettingsChanged(r.applySettings)

	if cfg.Audio.LocalPlayback {
		r.speaker = audio.NewSpeaker(cfg.Audio.SampleRate, logger)
	}
	if err := r.queue.Start(r.ctx, r.play); err != nil {
		return err
	}

	r.wsServer = ws.NewServer(ws.Config{Addr: cfg.Server.Addr}, ws.Deps{
		TTS:   svc,
		Queue: r.queue,
		Users: perms,
		Debug: r.debug,
	}, r.bus, logger)

	r.consumeSpeakRequests()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.wsServer.Forward(r.ctx, r.bus)
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.wsServer.Start(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http server stopped", "err", err)
			r.bus.Publish(events.TopicAppError, map[string]string{"source": "http", "error": err.Error()})
		}
	}()

	return r.startChat()
}

// applySettings pushes the parts of the settings the service does not own.
func (r *Runtime) applySettings(s ttsusecase.Settings) {
	overflow, err := queue.ParseOverflowPolicy(s.OverflowPolicy)
	if err != nil {
		overflow = queue.OverflowReject
	}
	r.queue.SetLimits(s.MaxQueueSize, s.RateLimit, s.RateLimitWindow(), overflow)
	if r.ttsServ != nil {
		r.ttsServ.SetEngines(NewEngineRegistry(r.cfg, s.Credentials))
	}
}

// play hands one item to the overlays and, when enabled, the local speaker.
// Overlays report their own progress; the queue paces by item duration.
func (r *Runtime) play(ctx context.Context, item *domain.QueueItem) error {
	r.bus.Publish(events.TopicTTSPlay, events.NewTTSPlayDTO(item))
	if r.speaker == nil {
		return nil
	}
	return r.speaker.Play(ctx, item)
}

// consumeSpeakRequests runs WebSocket tts:speak intake through the pipeline.
func (r *Runtime) consumeSpeakRequests() {
	ch, unsubscribe := r.bus.Subscribe(events.TopicTTSSpeak)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-r.ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				req, ok := payload.(domain.SpeakRequest)
				if !ok {
					continue
				}
				r.speak.Go(func(ctx context.Context) {
					if res := r.ttsServ.Speak(ctx, req); !res.Success {
						r.logger.Debug("socket speak rejected", "user", req.Username, "reason", res.Reason, "err", res.Error)
					}
				})
			}
		}
	}()
}

func (r *Runtime) startChat() error {
	cfg, logger := r.cfg, r.logger

	trigger, err := handle_message.ParseTrigger(cfg.Chat.Trigger)
	if err != nil {
		return err
	}
	router := commands.NewRouter(cfg.Chat.Prefix)
	router.Register(commands.NewTTSCommand(r.ttsServ, r.queue))

	var tiers domain.SubscriberTierResolver
	if cfg.Twitch.ClientID != "" && cfg.Twitch.APIToken != "" && cfg.Twitch.BroadcasterID != "" {
		resolver, err := twitchinfra.NewTierResolver(twitchinfra.TierResolverConfig{
			ClientID:        cfg.Twitch.ClientID,
			UserAccessToken: cfg.Twitch.APIToken,
			BroadcasterID:   cfg.Twitch.BroadcasterID,
		})
		if err != nil {
			logger.Warn("subscriber tiers disabled", "err", err)
		} else {
			tiers = resolver
		}
	}

	uc := handle_message.NewInteractor(router, r.ttsServ, tiers, trigger, logger)
	// Synthesis can take seconds; the read loops only publish and hand off.
	dispatch := func(_ context.Context, msg domain.Message) error {
		r.bus.Publish(events.TopicChatMessage, events.NewChatMessageDTO(msg))
		r.speak.Go(func(ctx context.Context) {
			if err := uc.Handle(ctx, msg); err != nil {
				logger.Debug("chat message not spoken", "platform", msg.Platform, "user", msg.Username, "err", err)
			}
		})
		return nil
	}

	if len(cfg.Twitch.Channels) > 0 {
		adapter := twitchadapter.NewAdapter(twitchadapter.Config{
			Username:   cfg.Twitch.Username,
			OAuthToken: formatTwitchOAuthToken(cfg.Twitch.OAuthToken),
			Channels:   cfg.Twitch.Channels,
		}, logger)
		adapter.SetHandler(dispatch)
		r.runChat("twitch", adapter.Start)
	}
	if cfg.Kick.ChatroomID > 0 {
		adapter := kickadapter.NewAdapter(kickadapter.Config{
			ChatroomID:        cfg.Kick.ChatroomID,
			BroadcasterUserID: cfg.Kick.BroadcasterUserID,
		}, logger)
		adapter.SetHandler(dispatch)
		r.runChat("kick", adapter.Start)
	}
	return nil
}

func (r *Runtime) runChat(platform string, start func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := start(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("chat connection stopped", "platform", platform, "err", err)
			r.bus.Publish(events.TopicAppError, map[string]string{"source": platform, "error": err.Error()})
		}
	}()
}

func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.cancel()
	r.queue.Stop()
	r.wg.Wait()
	r.speak.Wait()
	r.bus.Close()
	r.started = false
	return r.store.Close()
}

// Wait blocks until the runtime context ends.
func (r *Runtime) Wait() {
	<-r.ctx.Done()
}

func (r *Runtime) Bus() *events.Bus {
	if r == nil {
		return nil
	}
	return r.bus
}

func (r *Runtime) TTSService() *ttsusecase.Service {
	if r == nil {
		return nil
	}
	return r.ttsServ
}

func (r *Runtime) Queue() *queue.Manager {
	if r == nil {
		return nil
	}
	return r.queue
}

func (r *Runtime) Config() *config.Config {
	if r == nil {
		return nil
	}
	return r.cfg
}

// NewEngineRegistry builds the engine set from configuration, with keys saved
// through the API taking precedence over configured ones.
func NewEngineRegistry(cfg *config.Config, creds ttsusecase.Credentials) *engines.Registry {
	e := cfg.Engines
	return engines.NewRegistry(engines.Config{
		Timeout:       e.Timeout,
		FallbackOrder: e.FallbackOrder,
		TikTok: engines.TikTokConfig{
			Enabled:           e.TikTok.Enabled,
			Endpoint:          e.TikTok.Endpoint,
			RequestsPerMinute: e.TikTok.RequestsPerMinute,
		},
		Google:    engines.GoogleConfig{APIKey: firstNonEmpty(creds.GoogleAPIKey, e.Google.APIKey)},
		Speechify: engines.SpeechifyConfig{APIKey: firstNonEmpty(creds.SpeechifyAPIKey, e.Speechify.APIKey)},
		ElevenLabs: engines.ElevenLabsConfig{
			APIKey:  firstNonEmpty(creds.ElevenLabsAPIKey, e.ElevenLabs.APIKey),
			ModelID: e.ElevenLabs.ModelID,
		},
	})
}

func settingsFromConfig(cfg *config.Config) (ttsusecase.Settings, error) {
	t := cfg.TTS
	s := ttsusecase.DefaultSettings()
	s.Enabled = t.Enabled
	s.DefaultEngine = t.DefaultEngine
	s.DefaultVoice = t.DefaultVoice
	s.Volume = t.Volume
	s.Speed = t.Speed
	s.MaxTextLength = t.MaxTextLength
	s.MinTeamLevel = t.MinTeamLevel
	s.ProfanityMode = profanity.Mode(t.ProfanityMode)
	s.AutoLanguageDetect = t.AutoLanguageDetect
	s.FallbackLanguage = t.FallbackLanguage
	s.MaxQueueSize = t.MaxQueueSize
	s.RateLimit = t.RateLimit
	s.RateLimitWindowSecs = int(t.RateLimitWindow.Seconds())
	s.OverflowPolicy = t.Overflow
	return s.Normalize()
}

func formatTwitchOAuthToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
