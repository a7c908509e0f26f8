package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

// AddObservation stores a note and returns its id
func (s *SQLiteStore) AddObservation(ctx context.Context, obs models.Observation) (int64, error) {
	if obs.Type == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "type", "", nil)
	}
	props := obs.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return 0, errors.ValidationError(errors.CodeInvalidData, "properties", props, err)
	}

	var expires sql.NullString
	if obs.ExpiresAt != nil {
		expires = sql.NullString{String: obs.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (type, content, properties, confidence, source, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.Type, obs.Content, string(encoded), obs.Confidence, nullString(obs.Source), expires, s.timestamp())
	if err != nil {
		return 0, errors.StorageError(errors.CodeWriteFailed, "add_observation", err)
	}
	return result.LastInsertId()
}

// LatestObservation returns the newest unresolved, unexpired observation of
// a type, or nil
func (s *SQLiteStore) LatestObservation(ctx context.Context, obsType string) (*models.Observation, error) {
	var (
		obs                models.Observation
		props, created     string
		source, expiresRaw sql.NullString
		resolved           int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, content, properties, confidence, source, expires_at, created_at, is_resolved
		FROM observations
		WHERE type = ? AND is_resolved = 0 AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC, id DESC LIMIT 1`, obsType, s.timestamp()).
		Scan(&obs.ID, &obs.Type, &obs.Content, &props, &obs.Confidence, &source, &expiresRaw, &created, &resolved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "latest_observation", err)
	}

	if err := json.Unmarshal([]byte(props), &obs.Properties); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "latest_observation", err)
	}
	obs.Source = source.String
	if expiresRaw.Valid {
		t := parseTimestamp(expiresRaw.String)
		obs.ExpiresAt = &t
	}
	obs.CreatedAt = parseTimestamp(created)
	obs.IsResolved = resolved == 1
	return &obs, nil
}
