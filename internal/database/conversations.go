package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// NewConversation is the input for inserting a conversation.
type NewConversation struct {
	StudentName      string
	ConversationType string
	Date             string // YYYY-MM-DD, empty for today
	AudioPath        string
}

// Conversation is the conversation representation for API responses.
type Conversation struct {
	ID               int64     `json:"id"`
	StudentName      string    `json:"student_name"`
	ConversationType string    `json:"conversation_type"`
	Date             *string   `json:"date,omitempty"`
	AudioPath        string    `json:"audio_path"`
	HasTranscript    bool      `json:"has_transcript"`
	HasAnalysis      bool      `json:"has_analysis"`
	CreatedAt        time.Time `json:"created_at"`
}

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// CreateConversation inserts a conversation and returns its id.
func (db *DB) CreateConversation(ctx context.Context, nc NewConversation) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO conversations (student_name, conversation_type, conversation_date, audio_path)
		VALUES ($1, $2, COALESCE($3::date, CURRENT_DATE), $4)
		RETURNING id
	`, nc.StudentName, nc.ConversationType, pqString(nc.Date), nc.AudioPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// GetConversation fetches one conversation's metadata.
func (db *DB) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, student_name, conversation_type, conversation_date::text,
			audio_path, transcript IS NOT NULL, analysis IS NOT NULL, created_at
		FROM conversations WHERE id = $1
	`, id)

	var c Conversation
	err := row.Scan(&c.ID, &c.StudentName, &c.ConversationType, &c.Date,
		&c.AudioPath, &c.HasTranscript, &c.HasAnalysis, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns conversations newest first, optionally
// filtered by a case-insensitive substring match on student name or
// conversation type.
func (db *DB) ListConversations(ctx context.Context, q string, limit, offset int) ([]Conversation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, student_name, conversation_type, conversation_date::text,
			audio_path, transcript IS NOT NULL, analysis IS NOT NULL, created_at
		FROM conversations
		WHERE ($1::text IS NULL OR student_name ILIKE '%' || $1 || '%' OR conversation_type ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, pqString(q), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.StudentName, &c.ConversationType, &c.Date,
			&c.AudioPath, &c.HasTranscript, &c.HasAnalysis, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetTranscription returns the transcript text and whether one exists.
func (db *DB) GetTranscription(ctx context.Context, id int64) (string, bool, error) {
	var transcript *string
	err := db.Pool.QueryRow(ctx,
		`SELECT transcript FROM conversations WHERE id = $1`, id,
	).Scan(&transcript)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	if transcript == nil {
		return "", false, nil
	}
	return *transcript, true, nil
}

// SetTranscription stores the transcript for a conversation.
func (db *DB) SetTranscription(ctx context.Context, id int64, text string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE conversations SET transcript = $2 WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAnalysis returns the analysis text and whether one exists.
func (db *DB) GetAnalysis(ctx context.Context, id int64) (string, bool, error) {
	var analysis *string
	err := db.Pool.QueryRow(ctx,
		`SELECT analysis FROM conversations WHERE id = $1`, id,
	).Scan(&analysis)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	if analysis == nil {
		return "", false, nil
	}
	return *analysis, true, nil
}

// SetAnalysis stores the analysis for a conversation.
func (db *DB) SetAnalysis(ctx context.Context, id int64, text string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE conversations SET analysis = $2 WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// pqString converts an empty string to nil so PostgreSQL sees NULL and
// the ($1::type IS NULL OR ...) pattern skips the filter.
func pqString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
