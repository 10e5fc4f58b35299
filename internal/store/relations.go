package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/curia/internal/relation"
)

// SaveRelationships upserts a member's full relationship snapshot.
func (s *Store) SaveRelationships(ctx context.Context, records []relation.Record) error {
	for _, r := range records {
		_, err := s.db.Exec(ctx, `
			INSERT INTO relationships (owner_id, target_id, rel_type, value, decay_per_month, updated_at, context, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (owner_id, target_id, rel_type) DO UPDATE SET
				value = EXCLUDED.value,
				decay_per_month = EXCLUDED.decay_per_month,
				updated_at = EXCLUDED.updated_at,
				context = EXCLUDED.context,
				tags = EXCLUDED.tags`,
			r.OwnerID, r.TargetID, string(r.Type), r.Value, r.DecayPerMonth, r.LastUpdated, r.Context, r.Tags,
		)
		if err != nil {
			return fmt.Errorf("save relationship %s->%s/%s: %w", r.OwnerID, r.TargetID, r.Type, err)
		}
	}
	return nil
}

// LoadRelationships returns every stored record owned by a member,
// enough to fully reconstruct the relationship cache.
func (s *Store) LoadRelationships(ctx context.Context, ownerID string) ([]relation.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT owner_id, target_id, rel_type, value, decay_per_month, updated_at, context, tags
		FROM relationships WHERE owner_id = $1
		ORDER BY target_id, rel_type`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load relationships for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var records []relation.Record
	for rows.Next() {
		var r relation.Record
		var relType string
		if err := rows.Scan(&r.OwnerID, &r.TargetID, &relType, &r.Value,
			&r.DecayPerMonth, &r.LastUpdated, &r.Context, &r.Tags); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.Type = relation.Type(relType)
		records = append(records, r)
	}
	return records, rows.Err()
}
