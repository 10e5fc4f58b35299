package graph

import (
	"context"
	"testing"
	"time"

	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/curia/internal/relation"
)

func startArchive(t *testing.T) *Archive {
	t.Helper()
	ctx := context.Background()

	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("start neo4j: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	uri, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatalf("neo4j bolt url: %v", err)
	}

	a, err := New(uri, "", "", zap.NewNop())
	if err != nil {
		t.Fatalf("connect archive: %v", err)
	}
	t.Cleanup(func() { a.Close(ctx) })
	return a
}

func TestSnapshotAndInfluencers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	a := startArchive(t)
	ctx := context.Background()

	now := time.Now().UTC()
	records := []relation.Record{
		{OwnerID: "caesar", TargetID: "cato", Type: relation.Political,
			Value: -0.6, DecayPerMonth: 0.08, LastUpdated: now, Context: "land bill"},
		{OwnerID: "cicero", TargetID: "cato", Type: relation.Political,
			Value: 0.4, DecayPerMonth: 0.08, LastUpdated: now},
		{OwnerID: "atticus", TargetID: "cato", Type: relation.Personal,
			Value: 0.9, DecayPerMonth: 0.04, LastUpdated: now},
		{OwnerID: "clodius", TargetID: "cato", Type: relation.Political,
			Value: -0.2, DecayPerMonth: 0.08, LastUpdated: now},
	}
	if err := a.Snapshot(ctx, records); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	influencers, err := a.Influencers(ctx, "cato", 2)
	if err != nil {
		t.Fatalf("influencers: %v", err)
	}
	if len(influencers) != 2 {
		t.Fatalf("expected 2 influencers, got %d", len(influencers))
	}
	// Strongest absolute political edges win; the personal edge does not count.
	if v, ok := influencers["caesar"]; !ok || v != -0.6 {
		t.Errorf("expected caesar at -0.6, got %v (present %v)", v, ok)
	}
	if v, ok := influencers["cicero"]; !ok || v != 0.4 {
		t.Errorf("expected cicero at 0.4, got %v (present %v)", v, ok)
	}
	if _, ok := influencers["atticus"]; ok {
		t.Error("personal regard must not rank as political influence")
	}
}

func TestSnapshotUpserts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	a := startArchive(t)
	ctx := context.Background()

	rec := relation.Record{OwnerID: "caesar", TargetID: "cato",
		Type: relation.Political, Value: -0.6, DecayPerMonth: 0.08,
		LastUpdated: time.Now().UTC()}
	if err := a.Snapshot(ctx, []relation.Record{rec}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	rec.Value = -0.3
	if err := a.Snapshot(ctx, []relation.Record{rec}); err != nil {
		t.Fatalf("re-snapshot: %v", err)
	}

	influencers, err := a.Influencers(ctx, "cato", 10)
	if err != nil {
		t.Fatalf("influencers: %v", err)
	}
	if len(influencers) != 1 {
		t.Fatalf("expected a single merged edge, got %d", len(influencers))
	}
	if influencers["caesar"] != -0.3 {
		t.Errorf("expected updated value -0.3, got %f", influencers["caesar"])
	}
}
