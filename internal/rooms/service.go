// Package rooms implements the persisted-membership collaborators the
// realtime core consults: which chat threads a user belongs to, and
// whether a participant is booked into a live session. Both read the
// platform's Postgres; nothing here is written by the coordinator.
package rooms

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"github.com/tutorhive/livehub/internal/config"
	"github.com/tutorhive/livehub/realtime"
)

// Open connects to Postgres using the pgx database/sql driver.
func Open(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// Service answers thread-membership and call-authorization queries.
type Service struct {
	db *sql.DB
}

// NewService creates a service over an open database handle.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListThreads returns the chat-thread identifiers the user belongs to.
func (s *Service) ListThreads(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM chat_thread_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing threads for user %d: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var threads []string
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, fmt.Errorf("scanning thread row for user %d: %w", userID, err)
		}
		threads = append(threads, threadID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads for user %d: %w", userID, err)
	}
	return threads, nil
}

// CanJoin reports whether a participant may join a live session. Persistent
// participants must hold a confirmed booking as either side of the lesson;
// ghost identities are admitted when their token scope names the session.
func (s *Service) CanJoin(ctx context.Context, id realtime.Identity, sessionID string) (bool, error) {
	if id.Ghost {
		return id.SessionID == sessionID, nil
	}

	var allowed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM lesson_bookings
			WHERE session_id = $1
			  AND (student_id = $2 OR tutor_id = $2)
			  AND status = 'confirmed'
		)`, sessionID, id.UserID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("checking booking for user %d session %s: %w", id.UserID, sessionID, err)
	}
	return allowed, nil
}

// Ping verifies database connectivity for health checks.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
