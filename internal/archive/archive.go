// Package archive keeps a semantic record of every delivered speech in
// Qdrant so past debates can be recalled by similarity, not just tags.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/curia/internal/event"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const collection = "curia_speeches"

// Hit is one similar-speech result.
type Hit struct {
	SpeechID string            `json:"speech_id"`
	Score    float32           `json:"score"`
	Payload  map[string]string `json:"payload"`
}

// SpeechArchive embeds and stores speeches, and searches them back.
type SpeechArchive struct {
	embedder    Embedder
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	logger      *zap.Logger
}

// New dials Qdrant, ensures the speech collection, and returns the
// archive.
func New(host string, port int, embedder Embedder, logger *zap.Logger) (*SpeechArchive, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	a := &SpeechArchive{
		embedder:    embedder,
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		logger:      logger,
	}
	if err := a.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("Qdrant connected", zap.String("addr", addr))
	return a, nil
}

func (a *SpeechArchive) ensureCollection(ctx context.Context) error {
	_, err := a.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: collection})
	if err == nil {
		return nil
	}
	_, err = a.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(a.embedder.Dimension()),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

// Attach subscribes the archive to speech events. Indexing runs off the
// dispatch path; a failure is logged and the session continues.
func (a *SpeechArchive) Attach(bus *event.Bus) *event.Subscription {
	return bus.Subscribe(event.KindSpeech, -1<<20, func(ev event.Event) error {
		speech, ok := ev.(event.Speech)
		if !ok {
			return fmt.Errorf("archive got %T", ev)
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Index(ctx, speech); err != nil {
				a.logger.Warn("speech indexing failed",
					zap.String("speech", speech.EventID), zap.Error(err))
			}
		}()
		return nil
	})
}

// Index embeds a speech and upserts it into the collection.
func (a *SpeechArchive) Index(ctx context.Context, speech event.Speech) error {
	vector, err := a.embedder.Embed(ctx, speech.Content)
	if err != nil {
		return fmt.Errorf("embed speech %s: %w", speech.EventID, err)
	}

	payload := map[string]*pb.Value{
		"member": {Kind: &pb.Value_StringValue{StringValue: speech.SourceID}},
		"topic":  {Kind: &pb.Value_StringValue{StringValue: speech.Topic}},
		"stance": {Kind: &pb.Value_StringValue{StringValue: string(speech.Stance)}},
	}
	_, err = a.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: speech.EventID}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert speech %s: %w", speech.EventID, err)
	}
	return nil
}

// Similar finds the topK speeches nearest to the query text.
func (a *SpeechArchive) Similar(ctx context.Context, query string, topK uint64) ([]Hit, error) {
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	resp, err := a.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          topK,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search speeches: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := make(map[string]string)
		for k, v := range r.Payload {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				payload[k] = sv.StringValue
			}
		}
		hits = append(hits, Hit{
			SpeechID: r.Id.GetUuid(),
			Score:    r.Score,
			Payload:  payload,
		})
	}
	return hits, nil
}

// Close releases the gRPC connection.
func (a *SpeechArchive) Close() error {
	return a.conn.Close()
}
