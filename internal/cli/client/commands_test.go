package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "gateway", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("output", false, "")
	root.PersistentFlags().String("api-key", "", "")
	root.PersistentFlags().String("api-url", "", "")
	root.PersistentFlags().String("user", "", "")
	root.AddCommand(ChatCmd(), PersonaCmd(), KnowledgeCmd(), SearchCmd(), ConfigCmd())
	return root
}

func run(t *testing.T, serverURL, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	if serverURL != "" {
		args = append(args, "--api-url", serverURL)
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func TestChatCmd_RequiresUser(t *testing.T) {
	useConfigPath(t)

	_, err := run(t, "http://127.0.0.1:1", "", "chat", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user id is required")
}

func TestChatCmd_SingleMessage(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get("X-User-Id"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jim", req.Persona)
		assert.Equal(t, "hello", req.Message)

		writeData(w, http.StatusOK, ChatResponse{
			Response: "Hey.", Persona: "jim", SessionID: "s1", Mood: "neutral", TrustScore: 50,
		})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "chat", "hello", "--user", "u1", "-p", "jim")
	require.NoError(t, err)
	assert.Contains(t, out, "Hey.\n")
	assert.Contains(t, out, "[jim | mood neutral | trust 50 | session s1]")
}

func TestChatCmd_REPLKeepsSession(t *testing.T) {
	useConfigPath(t)

	var sessions []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sessions = append(sessions, req.SessionID)
		writeData(w, http.StatusOK, ChatResponse{Response: "ok " + req.Message, Persona: "support", SessionID: "s9"})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "one\n\ntwo\n/quit\nthree\n", "chat", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "ok one")
	assert.Contains(t, out, "ok two")
	assert.NotContains(t, out, "ok three")
	assert.Equal(t, []string{"", "s9"}, sessions)
}

func TestChatCmd_Stream(t *testing.T) {
	useConfigPath(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var msg streamMessage
		assert.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "u1", msg.UserID)
		assert.Equal(t, "hello", msg.Message)

		trust := 55
		frames := []streamFrame{
			{Type: "node", Node: "generate"},
			{Type: "token", Content: "Hi "},
			{Type: "token", Content: "there."},
			{Type: "done", Response: "Hi there.", Persona: "support", SessionID: "s1", Mood: "neutral", TrustScore: &trust},
		}
		for _, f := range frames {
			assert.NoError(t, conn.WriteJSON(f))
		}
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "chat", "hello", "--user", "u1", "--stream", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "generate")
	assert.Contains(t, out, "Hi there.\n[support | mood neutral | trust 55 | session s1]")
}

func TestChatCmd_StreamError(t *testing.T) {
	useConfigPath(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var msg streamMessage
		assert.NoError(t, conn.ReadJSON(&msg))
		assert.NoError(t, conn.WriteJSON(streamFrame{Type: "error", Message: "message cannot be empty"}))
	}))
	defer server.Close()

	_, err := run(t, server.URL, "", "chat", " ", "--user", "u1", "--stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message cannot be empty")
}

func TestPersonaListCmd(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personas", r.URL.Path)
		writeData(w, http.StatusOK, personaList{Items: []Persona{
			{ID: "support", Name: "Support", Builtin: true, AllowedTools: []string{"retrieval"}},
			{ID: "pirate", Name: "Pirate", AllowedTools: []string{}},
		}})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "persona", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "support")
	assert.Contains(t, out, "builtin")
	assert.Contains(t, out, "runtime")

	out, err = run(t, server.URL, "", "persona", "list", "--output")
	require.NoError(t, err)
	var items []Persona
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, 2)
}

func TestKnowledgeAddCmd(t *testing.T) {
	useConfigPath(t)

	file := filepath.Join(t.TempDir(), "faq.md")
	require.NoError(t, os.WriteFile(file, []byte("Refunds take 5 days."), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/knowledge/items", r.URL.Path)

		var req createKnowledgeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "FAQ", req.Title)
		assert.Equal(t, "Refunds take 5 days.", req.Content)
		assert.Equal(t, "file://"+file, req.SourceURI)
		assert.Equal(t, "support", req.PersonaScope)

		writeData(w, http.StatusCreated, KnowledgeItem{ID: "k1", Title: req.Title})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "knowledge", "add", "--title", "FAQ", "--file", file, "--persona", "support")
	require.NoError(t, err)
	assert.Contains(t, out, "Added k1 (FAQ)")
}

func TestKnowledgeAddCmd_Validation(t *testing.T) {
	useConfigPath(t)

	_, err := run(t, "http://127.0.0.1:1", "", "knowledge", "add", "--title", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content or --file is required")

	_, err = run(t, "http://127.0.0.1:1", "", "knowledge", "add", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--title is required")
}

func TestKnowledgeListCmd(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
		writeData(w, http.StatusOK, knowledgeList{
			Items:   []KnowledgeItem{{ID: "k2", Title: "Shipping"}},
			Cursor:  "c2",
			HasMore: true,
		})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "knowledge", "list", "-n", "5", "--cursor", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Shipping")
	assert.Contains(t, out, "--cursor c2")
}

func TestKnowledgeDeleteCmd(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/knowledge/items/k1", r.URL.Path)
		writeData(w, http.StatusAccepted, ReindexJob{ID: "j1", Status: "pending"})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "knowledge", "delete", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "rebuild queued as job j1")
}

func TestKnowledgeReindexCmd(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/knowledge/reindex":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "model change", body["reason"])
			writeData(w, http.StatusAccepted, ReindexJob{ID: "j2", Status: "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/knowledge/reindex/j2":
			writeData(w, http.StatusOK, ReindexJob{ID: "j2", Status: "failed", Error: "embedder down"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "knowledge", "reindex", "--reason", "model change")
	require.NoError(t, err)
	assert.Contains(t, out, "Job j2: pending")

	out, err = run(t, server.URL, "", "knowledge", "reindex", "j2")
	require.NoError(t, err)
	assert.Contains(t, out, "Job j2: failed (embedder down)")
}

func TestSearchCmd(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refunds", req.Query)
		assert.Equal(t, "support", req.Persona)
		assert.Equal(t, 3, req.K)
		assert.True(t, req.Strict)

		writeData(w, http.StatusOK, SearchResponse{Results: []SearchHit{
			{ID: "c1", Text: "Refunds take 5 days.", ChunkType: "knowledge", Score: 0.9},
		}})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "search", "refunds", "-p", "support", "-k", "3", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 results")
	assert.Contains(t, out, "Refunds take 5 days.")
}

func TestSearchCmd_NoResults(t *testing.T) {
	useConfigPath(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, SearchResponse{Results: []SearchHit{}})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "", "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestConfigCmds(t *testing.T) {
	configPath := useConfigPath(t)

	_, err := run(t, "", "", "config", "set")
	require.Error(t, err)

	out, err := run(t, "", "", "config", "set", "--key", "abcdefghijkl", "--user-id", "u7")
	require.NoError(t, err)
	assert.Contains(t, out, configPath)

	out, err = run(t, "", "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "abcd****ijkl")
	assert.Contains(t, out, "u7")
	assert.Contains(t, out, string(SourceGlobalConfig))
	assert.Contains(t, out, defaultAPIURL)
	assert.NotContains(t, out, "abcdefghijkl")
}
