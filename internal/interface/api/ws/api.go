package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"liveTTS/internal/app/tts/debuglog"
	"liveTTS/internal/app/tts/queue"
	"liveTTS/internal/domain"
	"liveTTS/internal/usecase/tts"
	"liveTTS/internal/usecase/tts/permissions"
)

// HiddenSecret replaces stored API keys in responses. Posting it back keeps
// the stored key.
const HiddenSecret = "***HIDDEN***"

type TTSService interface {
	Speak(ctx context.Context, req domain.SpeakRequest) tts.SpeakResult
	Settings() tts.Settings
	UpdateSettings(ctx context.Context, next tts.Settings) (tts.Settings, error)
	Voices(engine string) []tts.VoiceOption
	EngineInfos() []tts.EngineInfo
	Detect(text, engine string) tts.DetectResult
}

type QueueService interface {
	Info() queue.Info
	Stats() queue.Stats
	Items() []domain.QueueItem
	Clear() int
	SkipCurrent() bool
}

type UserService interface {
	GetAllUsers(ctx context.Context, filter, search string) ([]*domain.UserTTSSettings, error)
	GetStats(ctx context.Context) (permissions.Stats, error)
	GetUserSettings(ctx context.Context, userID string) (*domain.UserTTSSettings, error)
	AllowUser(ctx context.Context, userID, username string) (bool, error)
	DenyUser(ctx context.Context, userID, username string) (bool, error)
	BlacklistUser(ctx context.Context, userID, username string) (bool, error)
	UnblacklistUser(ctx context.Context, userID, username string) (bool, error)
	AssignVoice(ctx context.Context, userID, username, voiceID, engine string) (bool, error)
	RemoveVoiceAssignment(ctx context.Context, userID string) (bool, error)
	SetVolumeGain(ctx context.Context, userID, username string, gain float64) (bool, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
}

type DebugLog interface {
	Entries() []debuglog.Entry
	Clear()
}

type Deps struct {
	TTS   TTSService
	Queue QueueService
	Users UserService
	Debug DebugLog
}

type apiHandlers struct {
	deps   Deps
	logger *log.Logger
}

func newAPIHandlers(deps Deps, logger *log.Logger) *apiHandlers {
	return &apiHandlers{deps: deps, logger: logger}
}

func (a *apiHandlers) register(mux *http.ServeMux) {
	if a.deps.TTS != nil {
		mux.HandleFunc("GET /api/tts/config", a.handleGetConfig)
		mux.HandleFunc("POST /api/tts/config", a.handleUpdateConfig)
		mux.HandleFunc("GET /api/tts/voices", a.handleVoices)
		mux.HandleFunc("GET /api/tts/engines", a.handleEngines)
		mux.HandleFunc("POST /api/tts/speak", a.handleSpeak)
		mux.HandleFunc("POST /api/tts/detect", a.handleDetect)
	}
	if a.deps.Queue != nil {
		mux.HandleFunc("GET /api/tts/queue", a.handleQueue)
		mux.HandleFunc("GET /api/tts/queue/stats", a.handleQueueStats)
		mux.HandleFunc("POST /api/tts/queue/clear", a.handleQueueClear)
		mux.HandleFunc("POST /api/tts/queue/skip", a.handleQueueSkip)
	}
	if a.deps.Users != nil {
		mux.HandleFunc("GET /api/tts/users", a.handleListUsers)
		mux.HandleFunc("GET /api/tts/users/stats", a.handleUserStats)
		mux.HandleFunc("GET /api/tts/users/{id}", a.handleGetUser)
		mux.HandleFunc("DELETE /api/tts/users/{id}", a.handleDeleteUser)
		mux.HandleFunc("POST /api/tts/users/{id}/voice", a.handleAssignVoice)
		mux.HandleFunc("DELETE /api/tts/users/{id}/voice", a.handleRemoveVoice)
		mux.HandleFunc("POST /api/tts/users/{id}/volume", a.handleVolume)
		mux.HandleFunc("POST /api/tts/users/{id}/{action}", a.handlePermission)
	}
	if a.deps.Debug != nil {
		mux.HandleFunc("GET /api/tts/debug", a.handleDebug)
		mux.HandleFunc("DELETE /api/tts/debug", a.handleDebugClear)
	}
}

// redact hides stored keys.
func redact(s tts.Settings) tts.Settings {
	hide := func(v string) string {
		if v == "" {
			return ""
		}
		return HiddenSecret
	}
	s.Credentials.GoogleAPIKey = hide(s.Credentials.GoogleAPIKey)
	s.Credentials.SpeechifyAPIKey = hide(s.Credentials.SpeechifyAPIKey)
	s.Credentials.ElevenLabsAPIKey = hide(s.Credentials.ElevenLabsAPIKey)
	return s
}

// restoreSecrets keeps the stored key wherever next carries the placeholder.
func restoreSecrets(next, current tts.Settings) tts.Settings {
	keep := func(v, old string) string {
		if strings.TrimSpace(v) == HiddenSecret {
			return old
		}
		return strings.TrimSpace(v)
	}
	next.Credentials.GoogleAPIKey = keep(next.Credentials.GoogleAPIKey, current.Credentials.GoogleAPIKey)
	next.Credentials.SpeechifyAPIKey = keep(next.Credentials.SpeechifyAPIKey, current.Credentials.SpeechifyAPIKey)
	next.Credentials.ElevenLabsAPIKey = keep(next.Credentials.ElevenLabsAPIKey, current.Credentials.ElevenLabsAPIKey)
	return next
}

func (a *apiHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, redact(a.deps.TTS.Settings()))
}

// handleUpdateConfig overlays the posted fields on the current settings.
func (a *apiHandlers) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	current := a.deps.TTS.Settings()
	next := redact(current)
	if !decodeBody(w, r, &next) {
		return
	}
	next = restoreSecrets(next, current)

	saved, err := a.deps.TTS.UpdateSettings(r.Context(), next)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, redact(saved))
}

func (a *apiHandlers) handleVoices(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	voices := a.deps.TTS.Voices(engine)
	if voices == nil {
		voices = []tts.VoiceOption{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"engine": engine, "voices": voices})
}

func (a *apiHandlers) handleEngines(w http.ResponseWriter, r *http.Request) {
	engines := a.deps.TTS.EngineInfos()
	if engines == nil {
		engines = []tts.EngineInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"engines": engines})
}

type speakRequest struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
	VoiceID  string `json:"voiceId"`
	Engine   string `json:"engine"`
	Priority *int   `json:"priority"`
}

// handleSpeak queues speech for the host. Manual requests carry the
// broadcaster team level.
func (a *apiHandlers) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var body speakRequest
	if !decodeBody(w, r, &body) {
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		username = "host"
	}
	res := a.deps.TTS.Speak(r.Context(), domain.SpeakRequest{
		Text:      body.Text,
		UserID:    strings.TrimSpace(body.UserID),
		Username:  username,
		VoiceID:   body.VoiceID,
		Engine:    body.Engine,
		Source:    domain.SourceManual,
		TeamLevel: 4,
		Priority:  body.Priority,
	})
	writeJSON(w, speakStatus(res), res)
}

func speakStatus(res tts.SpeakResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Error {
	case tts.CodeDisabled:
		return http.StatusServiceUnavailable
	case tts.CodePermissionDenied:
		return http.StatusForbidden
	case tts.CodeProfanityDetected:
		return http.StatusUnprocessableEntity
	case tts.CodeEmptyText:
		return http.StatusBadRequest
	case tts.CodeQueueFull, tts.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

type detectRequest struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
}

func (a *apiHandlers) handleDetect(w http.ResponseWriter, r *http.Request) {
	var body detectRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, a.deps.TTS.Detect(body.Text, body.Engine))
}

func (a *apiHandlers) handleQueue(w http.ResponseWriter, r *http.Request) {
	items := a.deps.Queue.Items()
	if items == nil {
		items = []domain.QueueItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"info": a.deps.Queue.Info(), "items": items})
}

func (a *apiHandlers) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Queue.Stats())
}

func (a *apiHandlers) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	n := a.deps.Queue.Clear()
	a.logger.Info("queue cleared through api", "items", n)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

func (a *apiHandlers) handleQueueSkip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"skipped": a.deps.Queue.SkipCurrent()})
}

func (a *apiHandlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	users, err := a.deps.Users.GetAllUsers(r.Context(), query.Get("filter"), query.Get("q"))
	if err != nil {
		a.userError(w, "list users", err)
		return
	}
	if users == nil {
		users = []*domain.UserTTSSettings{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *apiHandlers) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.deps.Users.GetStats(r.Context())
	if err != nil {
		a.serverError(w, "user stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiHandlers) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.deps.Users.GetUserSettings(r.Context(), r.PathValue("id"))
	if err != nil {
		a.userError(w, "get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *apiHandlers) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ok, err := a.deps.Users.DeleteUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.userError(w, "delete user", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userActionRequest struct {
	Username string  `json:"username"`
	VoiceID  string  `json:"voiceId"`
	Engine   string  `json:"engine"`
	Gain     float64 `json:"gain"`
}

func (a *apiHandlers) handlePermission(w http.ResponseWriter, r *http.Request) {
	var action func(context.Context, string, string) (bool, error)
	switch r.PathValue("action") {
	case "allow":
		action = a.deps.Users.AllowUser
	case "deny":
		action = a.deps.Users.DenyUser
	case "blacklist":
		action = a.deps.Users.BlacklistUser
	case "unblacklist":
		action = a.deps.Users.UnblacklistUser
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	var body userActionRequest
	if !decodeOptionalBody(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	if _, err := action(r.Context(), id, body.Username); err != nil {
		a.userError(w, r.PathValue("action"), err)
		return
	}
	a.writeUser(w, r, id)
}

func (a *apiHandlers) handleAssignVoice(w http.ResponseWriter, r *http.Request) {
	var body userActionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	if _, err := a.deps.Users.AssignVoice(r.Context(), id, body.Username, body.VoiceID, body.Engine); err != nil {
		a.userError(w, "assign voice", err)
		return
	}
	a.writeUser(w, r, id)
}

func (a *apiHandlers) handleRemoveVoice(w http.ResponseWriter, r *http.Request) {
	ok, err := a.deps.Users.RemoveVoiceAssignment(r.Context(), r.PathValue("id"))
	if err != nil {
		a.userError(w, "remove voice", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	a.writeUser(w, r, r.PathValue("id"))
}

func (a *apiHandlers) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body userActionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	if _, err := a.deps.Users.SetVolumeGain(r.Context(), id, body.Username, body.Gain); err != nil {
		a.userError(w, "set volume", err)
		return
	}
	a.writeUser(w, r, id)
}

func (a *apiHandlers) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := a.deps.Users.GetUserSettings(r.Context(), id)
	if err != nil {
		a.serverError(w, "reload user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *apiHandlers) handleDebug(w http.ResponseWriter, r *http.Request) {
	entries := a.deps.Debug.Entries()
	if entries == nil {
		entries = []debuglog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *apiHandlers) handleDebugClear(w http.ResponseWriter, r *http.Request) {
	a.deps.Debug.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// userError maps validation failures to 400 and store failures to 500.
func (a *apiHandlers) userError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, permissions.ErrEmptyUserID) || errors.Is(err, permissions.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.serverError(w, op, err)
}

func (a *apiHandlers) serverError(w http.ResponseWriter, op string, err error) {
	a.logger.Error("api request failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decodeBody(w, r, dst)
}
