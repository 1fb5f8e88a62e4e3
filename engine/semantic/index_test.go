package semantic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dnastudio/trendscout/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error

	upserted *pb.UpsertPoints
	searched *pb.SearchPoints
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	createErr error
	created   *pb.CreateCollection
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls []string
	fail  string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.fail != "" && strings.Contains(text, m.fail) {
		return nil, errors.New("embed failed")
	}
	return []float32{float32(len(text)), 1}, nil
}

// --- Tests ---

func TestCloseWithoutConn(t *testing.T) {
	idx := NewWithClients(nil, nil, "titles", nil)
	if err := idx.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew(t *testing.T) {
	idx, err := New("localhost:0", "titles", &mockEmbedder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()
	if idx.collection != "titles" {
		t.Errorf("collection = %q", idx.collection)
	}
}

func TestEnsureCollection(t *testing.T) {
	tests := []struct {
		name       string
		cols       *mockCollections
		wantErr    bool
		wantCreate bool
	}{
		{"exists", &mockCollections{listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "titles"}},
		}}, false, false},
		{"other exists", &mockCollections{listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "other"}},
		}}, false, true},
		{"list error", &mockCollections{listErr: errors.New("rpc fail")}, true, false},
		{"create error", &mockCollections{
			listResp:  &pb.ListCollectionsResponse{},
			createErr: errors.New("create fail"),
		}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewWithClients(&mockPoints{}, tt.cols, "titles", nil)
			err := idx.EnsureCollection(context.Background(), 768)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (tt.cols.created != nil) != tt.wantCreate {
				t.Fatalf("created = %v, want %v", tt.cols.created != nil, tt.wantCreate)
			}
			if tt.cols.created != nil && tt.cols.created.GetVectorsConfig().GetParams().GetSize() != 768 {
				t.Errorf("size = %d", tt.cols.created.GetVectorsConfig().GetParams().GetSize())
			}
		})
	}
}

func TestIndex(t *testing.T) {
	pts := &mockPoints{}
	emb := &mockEmbedder{}
	idx := NewWithClients(pts, &mockCollections{}, "titles", emb)

	cards := []domain.TrendCard{
		{VideoID: "v1", Keyword: "Minha sogra", ViewsSample: 150_000},
		{VideoID: "", Keyword: "sem id"},
		{VideoID: "v2", Keyword: "Meu marido", ViewsSample: 9_000},
	}
	n, err := idx.Index(context.Background(), "sogra", domain.RegionBR, cards)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("indexed %d, want 2", n)
	}
	if len(emb.calls) != 2 {
		t.Fatalf("embed calls = %d, want 2", len(emb.calls))
	}

	up := pts.upserted
	if up.GetCollectionName() != "titles" || !up.GetWait() {
		t.Errorf("unexpected request: %v", up)
	}
	first := up.GetPoints()[0]
	if first.GetId().GetUuid() != PointID("v1") {
		t.Errorf("point id = %s", first.GetId().GetUuid())
	}
	if got := first.GetVectors().GetVector().GetData(); len(got) != 2 || got[0] != float32(len("Minha sogra")) {
		t.Errorf("vector = %v", got)
	}
	p := first.GetPayload()
	if p[keyQuery].GetStringValue() != "sogra" || p[keyRegion].GetStringValue() != "BR" {
		t.Errorf("payload = %v", p)
	}
	if p[keyViews].GetIntegerValue() != 150_000 {
		t.Errorf("views = %d", p[keyViews].GetIntegerValue())
	}
}

func TestIndexNothing(t *testing.T) {
	pts := &mockPoints{}
	idx := NewWithClients(pts, &mockCollections{}, "titles", &mockEmbedder{})
	n, err := idx.Index(context.Background(), "q", "", nil)
	if err != nil || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}
	if pts.upserted != nil {
		t.Fatal("expected no upsert")
	}
}

func TestIndexErrors(t *testing.T) {
	cards := []domain.TrendCard{{VideoID: "v1", Keyword: "boom"}}

	pts := &mockPoints{}
	idx := NewWithClients(pts, &mockCollections{}, "titles", &mockEmbedder{fail: "boom"})
	if _, err := idx.Index(context.Background(), "q", "", cards); err == nil {
		t.Fatal("expected embed error")
	}
	if pts.upserted != nil {
		t.Fatal("expected no upsert after embed failure")
	}

	idx = NewWithClients(&mockPoints{upsertErr: errors.New("fail")}, &mockCollections{}, "titles", &mockEmbedder{})
	if _, err := idx.Index(context.Background(), "q", "", cards); err == nil {
		t.Fatal("expected upsert error")
	}
}

func TestPointIDStable(t *testing.T) {
	if PointID("abc") != PointID("abc") {
		t.Fatal("point id not deterministic")
	}
	if PointID("abc") == PointID("abd") {
		t.Fatal("distinct videos share a point id")
	}
}

func TestSimilar(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{{
			Score: 0.91,
			Payload: map[string]*pb.Value{
				keyVideoID: stringValue("v1"),
				keyTitle:   stringValue("Minha sogra"),
				keyQuery:   stringValue("sogra"),
				keyRegion:  stringValue("BR"),
				keyViews:   {Kind: &pb.Value_IntegerValue{IntegerValue: 42}},
			},
		}},
	}}
	idx := NewWithClients(pts, &mockCollections{}, "titles", &mockEmbedder{})

	got, err := idx.Similar(context.Background(), "sogra malvada", 0, domain.RegionBR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SimilarTitle{VideoID: "v1", Title: "Minha sogra", Query: "sogra", Region: "BR", Views: 42, Score: 0.91}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %+v", got)
	}
	if pts.searched.GetLimit() != 10 {
		t.Errorf("limit = %d, want default 10", pts.searched.GetLimit())
	}
	cond := pts.searched.GetFilter().GetMust()[0].GetField()
	if cond.GetKey() != keyRegion || cond.GetMatch().GetKeyword() != "BR" {
		t.Errorf("filter = %v", cond)
	}
}

func TestSimilarWithoutRegion(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	idx := NewWithClients(pts, &mockCollections{}, "titles", &mockEmbedder{})
	got, err := idx.Similar(context.Background(), "x", 3, "")
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
	if pts.searched.GetFilter() != nil {
		t.Error("expected no filter")
	}
}

func TestSimilarErrors(t *testing.T) {
	idx := NewWithClients(&mockPoints{}, &mockCollections{}, "titles", &mockEmbedder{fail: "x"})
	if _, err := idx.Similar(context.Background(), "x", 3, ""); err == nil {
		t.Fatal("expected embed error")
	}
	idx = NewWithClients(&mockPoints{searchErr: errors.New("fail")}, &mockCollections{}, "titles", &mockEmbedder{})
	if _, err := idx.Similar(context.Background(), "y", 3, ""); err == nil {
		t.Fatal("expected search error")
	}
}
