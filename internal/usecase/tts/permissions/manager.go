// Package permissions decides who may trigger speech and stores per-user
// voice assignments. Every call reads and writes through the repository.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"liveTTS/internal/domain"
)

const (
	ReasonBlacklisted           = "blacklisted"
	ReasonDenied                = "denied"
	ReasonAllowed               = "allowed"
	ReasonTeamLevel             = "team_level"
	ReasonInsufficientTeamLevel = "insufficient_team_level"
)

var (
	ErrEmptyUserID = errors.New("permissions: empty user id")
	// ErrInvalidArgument marks rejected input such as an empty voice id.
	ErrInvalidArgument = errors.New("permissions: invalid argument")
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type Stats struct {
	Total         int `json:"total"`
	Allowed       int `json:"allowed"`
	Denied        int `json:"denied"`
	Blacklisted   int `json:"blacklisted"`
	Unset         int `json:"unset"`
	WithVoice     int `json:"withVoice"`
	CustomVolumes int `json:"customVolumes"`
}

type Manager struct {
	repo domain.TTSUserRepository

	// mu serializes read-modify-write cycles on user rows.
	mu sync.Mutex
}

func NewManager(repo domain.TTSUserRepository) *Manager {
	return &Manager{repo: repo}
}

// CheckPermission evaluates blacklist, explicit deny, explicit allow and the
// team level threshold in that order.
func (m *Manager) CheckPermission(ctx context.Context, userID, username string, teamLevel, minTeamLevel int) (Decision, error) {
	if userID != "" {
		user, err := m.repo.GetTTSUser(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("permissions: check %s: %w", userID, err)
		}
		if user != nil {
			switch user.Permission {
			case domain.PermissionBlacklisted:
				return Decision{Allowed: false, Reason: ReasonBlacklisted}, nil
			case domain.PermissionDenied:
				return Decision{Allowed: false, Reason: ReasonDenied}, nil
			case domain.PermissionAllowed:
				return Decision{Allowed: true, Reason: ReasonAllowed}, nil
			}
		}
	}

	if teamLevel >= minTeamLevel {
		return Decision{Allowed: true, Reason: ReasonTeamLevel}, nil
	}
	return Decision{Allowed: false, Reason: ReasonInsufficientTeamLevel}, nil
}

func (m *Manager) AllowUser(ctx context.Context, userID, username string) (bool, error) {
	return m.setPermission(ctx, userID, username, domain.PermissionAllowed)
}

func (m *Manager) DenyUser(ctx context.Context, userID, username string) (bool, error) {
	return m.setPermission(ctx, userID, username, domain.PermissionDenied)
}

func (m *Manager) BlacklistUser(ctx context.Context, userID, username string) (bool, error) {
	return m.setPermission(ctx, userID, username, domain.PermissionBlacklisted)
}

// UnblacklistUser puts a blacklisted user back into the unset state. Users in
// any other state are left untouched.
func (m *Manager) UnblacklistUser(ctx context.Context, userID, username string) (bool, error) {
	return m.update(ctx, userID, username, func(u *domain.UserTTSSettings) {
		if u.Permission == domain.PermissionBlacklisted {
			u.Permission = domain.PermissionUnset
		}
	})
}

func (m *Manager) setPermission(ctx context.Context, userID, username string, state domain.PermissionState) (bool, error) {
	return m.update(ctx, userID, username, func(u *domain.UserTTSSettings) {
		u.Permission = state
	})
}

func (m *Manager) AssignVoice(ctx context.Context, userID, username, voiceID, engine string) (bool, error) {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return false, fmt.Errorf("%w: empty voice id", ErrInvalidArgument)
	}
	return m.update(ctx, userID, username, func(u *domain.UserTTSSettings) {
		u.AssignedVoiceID = voiceID
		u.AssignedEngine = strings.ToLower(strings.TrimSpace(engine))
	})
}

// RemoveVoiceAssignment reports false when the user has no row.
func (m *Manager) RemoveVoiceAssignment(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, err := m.GetUserSettings(ctx, userID)
	if err != nil || user == nil {
		return false, err
	}
	user.AssignedVoiceID = ""
	user.AssignedEngine = ""
	if err := m.repo.UpsertTTSUser(ctx, user); err != nil {
		return false, fmt.Errorf("permissions: remove voice %s: %w", userID, err)
	}
	return true, nil
}

func (m *Manager) SetVolumeGain(ctx context.Context, userID, username string, gain float64) (bool, error) {
	if gain <= 0 || gain > 4 {
		return false, fmt.Errorf("%w: volume gain %.2f out of range (0,4]", ErrInvalidArgument, gain)
	}
	return m.update(ctx, userID, username, func(u *domain.UserTTSSettings) {
		u.VolumeGain = gain
	})
}

func (m *Manager) GetUserSettings(ctx context.Context, userID string) (*domain.UserTTSSettings, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	user, err := m.repo.GetTTSUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("permissions: get %s: %w", userID, err)
	}
	return user, nil
}

// GetAllUsers accepts "", "all", a permission state, "unset" or "voice" as
// filter. A non-empty search narrows the result to user ids and usernames
// containing it.
func (m *Manager) GetAllUsers(ctx context.Context, filter, search string) ([]*domain.UserTTSSettings, error) {
	f := domain.TTSUserFilter{Search: strings.TrimSpace(search)}
	switch filter = strings.ToLower(strings.TrimSpace(filter)); filter {
	case "", "all":
	case "voice", "with_voice":
		f.WithVoice = true
	default:
		state, err := domain.ParsePermissionState(filter)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		f.Permission = &state
	}

	users, err := m.repo.ListTTSUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("permissions: list: %w", err)
	}
	return users, nil
}

func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	users, err := m.repo.ListTTSUsers(ctx, domain.TTSUserFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("permissions: stats: %w", err)
	}

	var s Stats
	for _, u := range users {
		s.Total++
		switch u.Permission {
		case domain.PermissionAllowed:
			s.Allowed++
		case domain.PermissionDenied:
			s.Denied++
		case domain.PermissionBlacklisted:
			s.Blacklisted++
		default:
			s.Unset++
		}
		if u.HasVoiceAssignment() {
			s.WithVoice++
		}
		if u.VolumeGain != 1 {
			s.CustomVolumes++
		}
	}
	return s, nil
}

func (m *Manager) DeleteUser(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrEmptyUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.repo.DeleteTTSUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("permissions: delete %s: %w", userID, err)
	}
	return ok, nil
}

// update loads or creates the user row, applies fn and writes it back.
func (m *Manager) update(ctx context.Context, userID, username string, fn func(*domain.UserTTSSettings)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, err := m.GetUserSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		user = &domain.UserTTSSettings{UserID: userID, VolumeGain: 1}
	}
	if username = strings.TrimSpace(username); username != "" {
		user.Username = username
	}

	fn(user)

	if err := m.repo.UpsertTTSUser(ctx, user); err != nil {
		return false, fmt.Errorf("permissions: save %s: %w", userID, err)
	}
	return true, nil
}
