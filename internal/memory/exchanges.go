package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/relay/internal/llm"
)

// Exchange is one user/assistant turn with its pipeline metadata.
type Exchange struct {
	ID               string
	UserID           string
	UserMessage      string
	AssistantMessage string
	Intent           string
	Provider         string
	Verified         bool
	Confidence       float64
	CreatedAt        time.Time
}

// Metadata carries the pipeline outcome recorded with an exchange.
type Metadata struct {
	Intent     string
	Provider   string
	Verified   bool
	Confidence float64
}

// AppendExchange records one completed turn. Returns the stored
// exchange id.
func (s *Store) AppendExchange(ctx context.Context, userID, userMessage, assistantMessage string, meta Metadata) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (
			id, user_id, user_message, assistant_message,
			intent, provider, verified, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, userMessage, assistantMessage,
		meta.Intent, meta.Provider, meta.Verified, meta.Confidence, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert exchange: %w", err)
	}
	return id, nil
}

// Recent returns the user's last n exchanges in chronological order.
func (s *Store) Recent(ctx context.Context, userID string, n int) ([]Exchange, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_message, assistant_message,
		       intent, provider, verified, confidence, created_at
		FROM exchanges
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.UserMessage, &e.AssistantMessage,
			&e.Intent, &e.Provider, &e.Verified, &e.Confidence, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RecentMessages flattens the user's last n exchanges into alternating
// chat messages for prompt context.
func (s *Store) RecentMessages(ctx context.Context, userID string, n int) ([]llm.Message, error) {
	exchanges, err := s.Recent(ctx, userID, n)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(exchanges)*2)
	for _, e := range exchanges {
		messages = append(messages,
			llm.Message{Role: "user", Content: e.UserMessage},
			llm.Message{Role: "assistant", Content: e.AssistantMessage},
		)
	}
	return messages, nil
}

// CountForUser reports how many exchanges the user has stored.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM exchanges WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return count, nil
}
