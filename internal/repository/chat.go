package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatSessionRepository persists chat sessions and their message history.
type ChatSessionRepository struct {
	db dbtx
}

func NewChatSessionRepository(pool *pgxpool.Pool) *ChatSessionRepository {
	return &ChatSessionRepository{db: pool}
}

func NewChatSessionRepositoryWithTx(tx pgx.Tx) *ChatSessionRepository {
	return &ChatSessionRepository{db: tx}
}

// Save upserts the session row and replaces its message rows so the stored
// history always matches the in-memory session exactly.
func (r *ChatSessionRepository) Save(ctx context.Context, session *domain.ChatSession) error {
	if session.LastUpdate.IsZero() {
		session.LastUpdate = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_email, title, created_at, last_update)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, last_update = EXCLUDED.last_update`,
		session.ID, session.UserEmail, session.Title, session.CreatedAt, session.LastUpdate,
	)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, session.ID)
	if err != nil {
		return err
	}

	for i, m := range session.Messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chat_messages (id, session_id, position, role, content, rating, document_ids, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, session.ID, i, m.Role, m.Content, nullableString(string(m.Rating)), m.DocumentIDs, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := r.db.QueryRow(ctx,
		`SELECT id, user_email, title, created_at, last_update
		 FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.UserEmail, &s.Title, &s.CreatedAt, &s.LastUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatSessionNotFound
		}
		return nil, err
	}

	messages, err := r.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Messages = messages
	return &s, nil
}

// ListByUser returns the user's sessions with messages, most recent first.
func (r *ChatSessionRepository) ListByUser(ctx context.Context, userEmail string) ([]*domain.ChatSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_email, title, created_at, last_update
		 FROM chat_sessions WHERE user_email = $1 ORDER BY last_update DESC`,
		userEmail,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		if err := rows.Scan(&s.ID, &s.UserEmail, &s.Title, &s.CreatedAt, &s.LastUpdate); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range sessions {
		messages, err := r.loadMessages(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Messages = messages
	}
	return sessions, nil
}

func (r *ChatSessionRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatSessionNotFound
	}
	return nil
}

func (r *ChatSessionRepository) loadMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, role, content, rating, document_ids, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var rating *string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &rating, &m.DocumentIDs, &m.CreatedAt); err != nil {
			return nil, err
		}
		if rating != nil {
			m.Rating = domain.MessageRating(*rating)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
