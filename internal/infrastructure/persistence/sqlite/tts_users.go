package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

const userColumns = `user_id, username, permission, assigned_voice_id, assigned_engine, volume_gain, created_at, updated_at`

func (s *Store) GetTTSUser(ctx context.Context, userID string) (*domain.UserTTSSettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM tts_users WHERE user_id = ? LIMIT 1;`, userID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get tts user: %w", err)
	}
	return user, nil
}

func (s *Store) UpsertTTSUser(ctx context.Context, user *domain.UserTTSSettings) error {
	if user == nil || strings.TrimSpace(user.UserID) == "" {
		return fmt.Errorf("sqlite: tts user without id")
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.VolumeGain <= 0 {
		user.VolumeGain = 1
	}

	const stmt = `
INSERT INTO tts_users (user_id, username, permission, assigned_voice_id, assigned_engine, volume_gain, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	username=excluded.username,
	permission=excluded.permission,
	assigned_voice_id=excluded.assigned_voice_id,
	assigned_engine=excluded.assigned_engine,
	volume_gain=excluded.volume_gain,
	updated_at=excluded.updated_at;
`

	_, err := s.db.ExecContext(
		ctx,
		stmt,
		user.UserID,
		user.Username,
		string(user.Permission),
		nullString(user.AssignedVoiceID),
		nullString(user.AssignedEngine),
		user.VolumeGain,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert tts user: %w", err)
	}
	return nil
}

func (s *Store) ListTTSUsers(ctx context.Context, filter domain.TTSUserFilter) ([]*domain.UserTTSSettings, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Permission != nil {
		where = append(where, "permission = ?")
		args = append(args, string(*filter.Permission))
	}
	if filter.WithVoice {
		where = append(where, "assigned_voice_id IS NOT NULL AND assigned_voice_id <> ''")
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, "(LOWER(username) LIKE ? OR user_id LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}

	query := `SELECT ` + userColumns + ` FROM tts_users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, user_id;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tts users: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserTTSSettings
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan tts user: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list tts user rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteTTSUser(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tts_users WHERE user_id = ?;`, userID)
	if err != nil {
		return false, fmt.Errorf("sqlite: delete tts user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: delete tts user: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.UserTTSSettings, error) {
	var (
		user                 domain.UserTTSSettings
		permission           string
		voiceID, engine      sql.NullString
		gain                 sql.NullFloat64
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&user.UserID, &user.Username, &permission, &voiceID, &engine, &gain, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	user.Permission = domain.PermissionState(permission)
	user.AssignedVoiceID = voiceID.String
	user.AssignedEngine = engine.String
	user.VolumeGain = gain.Float64
	if !gain.Valid || user.VolumeGain <= 0 {
		user.VolumeGain = 1
	}
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

var _ domain.TTSUserRepository = (*Store)(nil)
