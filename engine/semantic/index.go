// Package semantic keeps an embedding index of surfaced video titles in
// Qdrant, so a new idea can be checked against titles that already trended.
package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/pkg/fn"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// pointsClient is the subset of pb.PointsClient the index uses.
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsClient is the subset of pb.CollectionsClient the index uses.
type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// pointNamespace seeds the name-based point ids, so re-indexing a video
// overwrites its point instead of adding another.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.youtube.com/watch"))

// PointID returns the Qdrant point id of a video.
func PointID(videoID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(videoID)).String()
}

// TitleIndex is the sole owner of all Qdrant operations.
type TitleIndex struct {
	conn         *grpc.ClientConn
	points       pointsClient
	collections  collectionsClient
	collection   string
	embedder     Embedder
	embedWorkers int
	logger       *slog.Logger
}

// New creates a TitleIndex connected to Qdrant at the given gRPC address.
func New(addr, collection string, e Embedder) (*TitleIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	idx := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, e)
	idx.conn = conn
	return idx, nil
}

// NewWithClients creates a TitleIndex over existing clients.
func NewWithClients(points pointsClient, collections collectionsClient, collection string, e Embedder) *TitleIndex {
	return &TitleIndex{
		points:       points,
		collections:  collections,
		collection:   collection,
		embedder:     e,
		embedWorkers: 4,
		logger:       slog.Default(),
	}
}

// Close closes the underlying gRPC connection, if any.
func (x *TitleIndex) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (x *TitleIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", x.collection, err)
	}
	x.logger.Info("qdrant collection created", "collection", x.collection, "dims", dims)
	return nil
}

// Index embeds the titles of cards and upserts them, tagged with the query
// and region that surfaced them. Cards without a video id are skipped.
func (x *TitleIndex) Index(ctx context.Context, query string, region domain.Region, cards []domain.TrendCard) (int, error) {
	cards = fn.Filter(cards, func(c domain.TrendCard) bool { return c.VideoID != "" && c.Keyword != "" })
	if len(cards) == 0 {
		return 0, nil
	}

	vecs := fn.Collect(fn.ParMapResult(cards, x.embedWorkers, func(c domain.TrendCard) fn.Result[[]float32] {
		return fn.FromPair(x.embedder.Embed(ctx, c.Keyword))
	}))
	embeddings, err := vecs.Unwrap()
	if err != nil {
		return 0, fmt.Errorf("semantic: embed titles: %w", err)
	}

	points := make([]*pb.PointStruct, len(cards))
	for i, c := range cards {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.VideoID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: map[string]*pb.Value{
				keyVideoID: stringValue(c.VideoID),
				keyTitle:   stringValue(c.Keyword),
				keyQuery:   stringValue(query),
				keyRegion:  stringValue(string(region)),
				keyViews:   {Kind: &pb.Value_IntegerValue{IntegerValue: c.ViewsSample}},
			},
		}
	}

	_, err = x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           proto.Bool(true),
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return len(points), nil
}

// Similar returns up to topK indexed titles closest to text. A non-empty
// region restricts the search to titles surfaced for that region.
func (x *TitleIndex) Similar(ctx context.Context, text string, topK int, region domain.Region) ([]SimilarTitle, error) {
	if topK <= 0 {
		topK = 10
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if region != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch(keyRegion, string(region))}}
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	out := make([]SimilarTitle, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		out[i] = SimilarTitle{
			VideoID: p[keyVideoID].GetStringValue(),
			Title:   p[keyTitle].GetStringValue(),
			Query:   p[keyQuery].GetStringValue(),
			Region:  p[keyRegion].GetStringValue(),
			Views:   p[keyViews].GetIntegerValue(),
			Score:   r.GetScore(),
		}
	}
	return out, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
