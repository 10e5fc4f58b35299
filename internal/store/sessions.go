package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nidhogg/curia/internal/senate"
)

// SaveSession archives a finished session result.
func (s *Store) SaveSession(ctx context.Context, res *senate.Result) error {
	topics, err := json.Marshal(res.Topics)
	if err != nil {
		return fmt.Errorf("marshal session topics: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO sessions (id, day, ended, topics, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		res.SessionID, res.Day, res.Ended, topics, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", res.SessionID, err)
	}
	return nil
}

// ListSessions returns archived sessions oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]*senate.Result, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, day, ended, topics FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var results []*senate.Result
	for rows.Next() {
		var res senate.Result
		var topics []byte
		if err := rows.Scan(&res.SessionID, &res.Day, &res.Ended, &topics); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(topics, &res.Topics); err != nil {
			return nil, fmt.Errorf("decode session topics: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
