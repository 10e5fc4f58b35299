// Package graph mirrors relationship snapshots into Neo4j so the web of
// influence can be queried across sessions.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/nidhogg/curia/internal/relation"
	"go.uber.org/zap"
)

// Archive writes relationship records into a Neo4j graph.
type Archive struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New connects to Neo4j and returns an archive.
func New(uri, user, password string, logger *zap.Logger) (*Archive, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j connect: %w", err)
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("neo4j verify: %w", err)
	}
	logger.Info("Neo4j connected")
	return &Archive{driver: driver, logger: logger}, nil
}

// Snapshot upserts a member's relationship records as REGARDS edges.
func (a *Archive) Snapshot(ctx context.Context, records []relation.Record) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, r := range records {
		_, err := session.Run(ctx,
			`MERGE (o:Member {id: $owner})
			 MERGE (t:Member {id: $target})
			 MERGE (o)-[rel:REGARDS {type: $type}]->(t)
			 SET rel.value = $value,
			     rel.decay_per_month = $decay,
			     rel.context = $context,
			     rel.updated_at = datetime()`,
			map[string]interface{}{
				"owner":   r.OwnerID,
				"target":  r.TargetID,
				"type":    string(r.Type),
				"value":   r.Value,
				"decay":   r.DecayPerMonth,
				"context": r.Context,
			})
		if err != nil {
			return fmt.Errorf("snapshot %s->%s/%s: %w", r.OwnerID, r.TargetID, r.Type, err)
		}
	}
	return nil
}

// Influencers returns the members with the strongest absolute political
// edge toward the given member, strongest first.
func (a *Archive) Influencers(ctx context.Context, memberID string, limit int) (map[string]float64, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (o:Member)-[rel:REGARDS {type: 'political'}]->(t:Member {id: $id})
		 RETURN o.id AS owner, rel.value AS value
		 ORDER BY abs(rel.value) DESC
		 LIMIT $limit`,
		map[string]interface{}{"id": memberID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("influencers of %s: %w", memberID, err)
	}

	out := make(map[string]float64)
	for result.Next(ctx) {
		rec := result.Record()
		owner, _ := rec.Get("owner")
		value, _ := rec.Get("value")
		out[owner.(string)] = value.(float64)
	}
	return out, result.Err()
}

// Close releases the driver.
func (a *Archive) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}
