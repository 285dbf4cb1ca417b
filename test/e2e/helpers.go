//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/deldesir/gateway/internal/api/handlers"
	"github.com/deldesir/gateway/internal/checkpoint"
	"github.com/deldesir/gateway/internal/jobs"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/deldesir/gateway/internal/persona"
	"github.com/deldesir/gateway/internal/provider"
	"github.com/deldesir/gateway/internal/repository"
	"github.com/deldesir/gateway/internal/retriever"
	"github.com/deldesir/gateway/internal/server"
	"github.com/deldesir/gateway/internal/service"
	"github.com/deldesir/gateway/internal/testutil"
	"github.com/deldesir/gateway/internal/trust"
	"github.com/deldesir/gateway/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dimensions = 64

// E2ETestEnv holds a running gateway backed by a real Postgres.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	Pool      *pgxpool.Pool
	Server    *httptest.Server
	Index     *vectorstore.FlatStore
	Knowledge *service.KnowledgeService
	Reindex   *jobs.ReindexWorker
	Generator *scriptedGenerator
}

// SetupE2EEnv starts Postgres, runs migrations and serves the full router
// with a flat vector store, the hash embedder and a scripted chat model.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	index, err := vectorstore.Open(t.TempDir(), dimensions)
	if err != nil {
		t.Fatalf("failed to open vector store: %v", err)
	}
	embedder := provider.NewCheckedEmbedder(provider.NewHashEmbedder(dimensions), dimensions)

	registry := persona.NewRegistry()
	personaRepo := repository.NewPersonaRepository(pool)
	personaCache := persona.NewCachedSource(persona.NewStoreSource(personaRepo), 16, 0)
	personas := service.NewPersonaService(personaRepo, registry, service.WithPersonaCache(personaCache))
	resolver := persona.NewResolver([]persona.Source{registry, personaCache})

	knowledge := service.NewKnowledgeService(
		repository.NewKnowledgeItemRepository(pool),
		repository.NewReindexJobRepository(pool),
		repository.NewTxRunner(pool),
		embedder,
		index,
	)

	gen := &scriptedGenerator{}
	recall := retriever.New(embedder, index, retriever.WithK(3))
	orch := orchestrator.New(gen, echoSummarizer{}, recall, resolver, trust.NewEngine(nil, nil),
		orchestrator.WithHistoryThreshold(20),
		orchestrator.WithRetrievalK(3),
	)

	router := server.NewRouter(server.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(index),
		ChatHandler:      handlers.NewChatHandler(service.NewChatService(orch, checkpoint.NewMemoryStore())),
		PersonaHandler:   handlers.NewPersonaHandler(personas),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledge),
		MemoryHandler:    handlers.NewMemoryHandler(service.NewMemoryService(recall)),
	})

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		Server:    httptest.NewServer(router),
		Index:     index,
		Knowledge: knowledge,
		Reindex:   jobs.NewReindexWorker(repository.NewReindexJobRepository(pool), knowledge),
		Generator: gen,
	}
}

// Cleanup releases every resource of the environment.
func (e *E2ETestEnv) Cleanup() {
	e.Server.Close()
	e.Pool.Close()
	if err := e.PostgresC.Terminate(e.Ctx); err != nil {
		e.T.Logf("failed to terminate postgres container: %v", err)
	}
}

// APIResponse is the response envelope.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
}

// Decode unmarshals the data envelope into v.
func (r *APIResponse) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

func (e *E2ETestEnv) Get(path, userID string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, userID)
}

func (e *E2ETestEnv) Post(path string, body any, userID string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, userID)
}

func (e *E2ETestEnv) Patch(path string, body any, userID string) (*APIResponse, error) {
	return e.doRequest(http.MethodPatch, path, body, userID)
}

func (e *E2ETestEnv) Delete(path, userID string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, userID)
}

func (e *E2ETestEnv) doRequest(method, path string, body any, userID string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	resp, err := e.Server.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &APIResponse{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to parse response %q: %w", data, err)
		}
	}
	return out, nil
}

// scriptedGenerator asks for retrieval when the user mentions a keyword and
// otherwise answers from its system prompt.
type scriptedGenerator struct{}

func (g *scriptedGenerator) Generate(_ context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	last := messages[len(messages)-1]
	system := messages[0].Content

	if last.Role == schema.User && len(tools) > 0 && strings.Contains(strings.ToLower(last.Content), "refund") {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID: "call_1",
			Function: schema.FunctionCall{
				Name:      tools[0].Name,
				Arguments: `{"query":"refund policy"}`,
			},
		}}), nil
	}

	if idx := strings.Index(system, "Refunds"); idx >= 0 {
		end := strings.Index(system[idx:], ".")
		return schema.AssistantMessage(system[idx:idx+end+1], nil), nil
	}

	name := strings.TrimPrefix(strings.SplitN(system, ".", 2)[0], "You are ")
	return schema.AssistantMessage("This is "+name+".", nil), nil
}

// echoSummarizer returns the last message unchanged, so retrieved excerpts
// reach the character card verbatim.
type echoSummarizer struct{}

func (echoSummarizer) Generate(_ context.Context, messages []*schema.Message, _ []*schema.ToolInfo) (*schema.Message, error) {
	return schema.AssistantMessage(messages[len(messages)-1].Content, nil), nil
}
