package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/curia/internal/memory"
)

// SaveMemories upserts a member's memory items.
func (s *Store) SaveMemories(ctx context.Context, ownerID string, items []memory.Item) error {
	for _, it := range items {
		_, err := s.db.Exec(ctx, `
			INSERT INTO memories (id, owner_id, created_at, content, event_id, importance, decay_rate, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				importance = EXCLUDED.importance,
				tags = EXCLUDED.tags`,
			it.ID, ownerID, it.Timestamp, it.Content, it.EventID, it.Importance, it.DecayRate, it.Tags,
		)
		if err != nil {
			return fmt.Errorf("save memory %s: %w", it.ID, err)
		}
	}
	return nil
}

// LoadMemories returns a member's memory items oldest first, enough to
// rebuild the memory index.
func (s *Store) LoadMemories(ctx context.Context, ownerID string) ([]memory.Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, created_at, content, COALESCE(event_id,''), importance, decay_rate, tags
		FROM memories WHERE owner_id = $1
		ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load memories for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var items []memory.Item
	for rows.Next() {
		var it memory.Item
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Content, &it.EventID,
			&it.Importance, &it.DecayRate, &it.Tags); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
