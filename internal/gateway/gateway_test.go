package gateway

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	ctxengine "github.com/flemzord/recall/internal/context"
	"github.com/flemzord/recall/internal/graph"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/search"
	"github.com/flemzord/recall/modules/storage/sqlite"
)

const testToken = "test-token"

// newTestGateway wires a Gateway against a real on-disk store with the
// lexical-only engine and no summarizer.
func newTestGateway(t *testing.T, auth AuthConfig) (*Gateway, http.Handler) {
	t.Helper()

	logger := slog.Default()
	stores, err := sqlite.Open(filepath.Join(t.TempDir(), "recall.db"), logger)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = stores.DB.Close() })

	estimator := ctxengine.NewCharEstimator(0)
	pipeline := ctxengine.NewPipeline(stores.Conversations, stores.Summaries, nil, estimator, logger)

	g := &Gateway{
		config:        Config{Auth: auth},
		logger:        logger,
		metrics:       NewMetrics(),
		facts:         memory.NewService(stores.Facts, nil, logger),
		assembler:     ctxengine.NewAssembler(stores.Conversations, pipeline, estimator, logger),
		engine:        search.NewEngine(stores.Facts, stores.Chunks, nil, logger),
		graphs:        graph.NewBuilder(stores.Facts, stores.Chunks, logger),
		conversations: stores.Conversations,
		factStore:     stores.Facts,
		chunks:        stores.Chunks,
		summaries:     stores.Summaries,
		jobs:          stores.Jobs,
	}
	g.config.defaults()
	return g, g.buildRouter()
}

// doJSON performs an authenticated request with an optional JSON body.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	decodeInto(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("health status = %q", resp.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "dog", Content: "Has a golden retriever",
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("recall_fact_saves_total")) {
		t.Error("metrics output missing recall_fact_saves_total")
	}
}

func TestAPI_NotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestFactLifecycle(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	rr := doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "dog", Content: "Has a golden retriever",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}
	var saved factJSON
	decodeInto(t, rr, &saved)
	if saved.ID == 0 {
		t.Fatal("saved fact has no id")
	}

	// Upsert keeps the id.
	rr = doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "dog", Content: "Has two golden retrievers",
	})
	var updated factJSON
	decodeInto(t, rr, &updated)
	if updated.ID != saved.ID {
		t.Errorf("upsert id = %d, want %d", updated.ID, saved.ID)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/facts", nil)
	var list []factJSON
	decodeInto(t, rr, &list)
	if len(list) != 1 || list[0].Content != "Has two golden retrievers" {
		t.Errorf("list = %+v", list)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/facts/search?q=retriever", nil)
	var found []factJSON
	decodeInto(t, rr, &found)
	if len(found) != 1 {
		t.Errorf("search found %d facts, want 1", len(found))
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/facts/"+itoa(saved.ID), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodDelete, "/api/facts/"+itoa(saved.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestSaveFact_MissingFields(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})
	rr := doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{Category: "pets"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHybridSearchEndpoint(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "dog", Content: "Has a golden retriever",
	})
	doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "work", Subject: "employer", Content: "Works at Acme",
	})

	rr := doJSON(t, h, http.MethodGet, "/api/search?q=retriever", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var results []searchResultJSON
	decodeInto(t, rr, &results)
	if len(results) != 1 || results[0].Fact.Subject != "dog" {
		t.Errorf("results = %+v, want the dog fact", results)
	}
	if results[0].Score < 0.15 {
		t.Errorf("score = %v, below the lexical-only floor", results[0].Score)
	}
}

func TestConversationEndpoints(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	rr := doJSON(t, h, http.MethodPost, "/api/messages", saveMessageRequest{
		Role: "user", Content: "Hello there",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodPost, "/api/messages", saveMessageRequest{
		Role: "alien", Content: "zap",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid role status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/context/conversation", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("context status = %d", rr.Code)
	}
	var cc conversationContextJSON
	decodeInto(t, rr, &cc)
	if len(cc.Messages) != 1 || cc.SummarizedCount != 0 {
		t.Errorf("context = %+v", cc)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/context/conversation?budget=-1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad budget status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/stats", nil)
	var stats memory.Stats
	decodeInto(t, rr, &stats)
	if stats.Messages != 1 {
		t.Errorf("stats.Messages = %d, want 1", stats.Messages)
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/conversation", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, "/api/messages", nil)
	var msgs []messageJSON
	decodeInto(t, rr, &msgs)
	if len(msgs) != 0 {
		t.Errorf("messages after clear = %+v", msgs)
	}
}

func TestGraphEndpoint(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "dog", Content: "Has a golden retriever",
	})
	doJSON(t, h, http.MethodPost, "/api/facts", saveFactRequest{
		Category: "pets", Subject: "cat", Content: "Has a tabby cat",
	})

	rr := doJSON(t, h, http.MethodGet, "/api/graph", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var g memory.Graph
	decodeInto(t, rr, &g)
	if len(g.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(g.Nodes))
	}
	categoryLinks := 0
	for _, l := range g.Links {
		if l.Type == memory.LinkCategory {
			categoryLinks++
		}
		if l.Source == l.Target {
			t.Errorf("self edge: %+v", l)
		}
	}
	if categoryLinks != 1 {
		t.Errorf("category links = %d, want 1", categoryLinks)
	}
}

func TestJobEndpoints(t *testing.T) {
	t.Parallel()

	_, h := newTestGateway(t, AuthConfig{BearerToken: testToken})

	rr := doJSON(t, h, http.MethodPost, "/api/jobs", createJobRequest{
		Name: "brief", Schedule: "0 8 * * *", Prompt: "Summarize", Channel: "telegram",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created map[string]int64
	decodeInto(t, rr, &created)
	id := created["id"]

	rr = doJSON(t, h, http.MethodPatch, "/api/jobs/"+itoa(id), setJobEnabledRequest{Enabled: false})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/jobs", nil)
	var jobs []jobJSON
	decodeInto(t, rr, &jobs)
	if len(jobs) != 1 || jobs[0].Enabled {
		t.Errorf("jobs = %+v, want one disabled job", jobs)
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/jobs/"+itoa(id), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPatch, "/api/jobs/"+itoa(id), setJobEnabledRequest{Enabled: true})
	if rr.Code != http.StatusNotFound {
		t.Errorf("patch missing job status = %d, want 404", rr.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
