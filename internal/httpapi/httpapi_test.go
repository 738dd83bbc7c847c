// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/miranda/internal/generate"
	"github.com/pdiddy/miranda/internal/index"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- test helpers ---

type wordEmbedder struct{}

func (wordEmbedder) Configured() bool { return true }

func (wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		v := make([]float32, 16)
		for _, w := range strings.Fields(strings.ToLower(txt)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%16]++
		}
		out[i] = v
	}
	return out, nil
}

// scriptedCompleter echoes retrieval context for queries and returns a
// numbered list for everything else.
type scriptedCompleter struct {
	configured bool
}

func (s *scriptedCompleter) Configured() bool { return s.configured }

func (s *scriptedCompleter) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	if !s.configured {
		return "", llm.ErrNotConfigured
	}
	start := strings.Index(prompt, "Context passages:")
	end := strings.Index(prompt, "Question:")
	if start >= 0 && end > start {
		return strings.TrimSpace(prompt[start+len("Context passages:") : end]), nil
	}
	return "1. The vault opens at midnight\n2. A double cross\n3. An alibi unravels", nil
}

type testServer struct {
	router *gin.Engine
	store  *project.Store
	index  *index.Service
}

func newTestServer(t *testing.T, configured bool, maxUpload int64) *testServer {
	t.Helper()
	store := project.New()
	scopes, err := index.NewScopeManager(t.TempDir())
	require.NoError(t, err)
	completer := &scriptedCompleter{configured: configured}
	svc := index.New(store, scopes, types.IndexConfig{ChunkSize: 400, ChunkOverlap: 40}, index.Options{
		Completer: completer,
		Embedder:  wordEmbedder{},
	})
	store.SetReleaser(svc)
	t.Cleanup(func() { svc.Close() })

	router := NewRouter(Config{
		Store:     store,
		Ingestor:  ingest.New(store, nil, types.IngestConfig{MaxUploadBytes: maxUpload}, nil),
		Index:     svc,
		Generator: generate.New(store, svc, completer, nil),
		Version:   "test",
	})
	return &testServer{router: router, store: store, index: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(t, req)
}

func (s *testServer) upload(t *testing.T, path, filename string, content []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) createProject(t *testing.T, name string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/projects", gin.H{"name": name, "template": "screenplay"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return body["project"].(map[string]any)["id"].(string)
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, body map[string]any, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, false, body["success"])
	assert.Equal(t, kind, body["type"])
	assert.NotEmpty(t, body["error"])
}

// --- tests ---

func TestHealth(t *testing.T) {
	s := newTestServer(t, true, 0)
	w, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["llm_configured"])
	assert.Equal(t, true, body["index_ready"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestProjects_CRUD(t *testing.T) {
	s := newTestServer(t, true, 0)
	id := s.createProject(t, "Night Heist")

	w, body := s.do(t, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = s.do(t, http.MethodPatch, "/projects/"+id, gin.H{"description": "A caper"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A caper", body["project"].(map[string]any)["description"])

	w, _ = s.do(t, http.MethodDelete, "/projects/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(t, http.MethodGet, "/projects/"+id, nil)
	assertError(t, w, body, http.StatusNotFound, "not_found")
}

func TestProjects_Validation(t *testing.T) {
	s := newTestServer(t, true, 0)

	w, body := s.do(t, http.MethodPost, "/projects", gin.H{"name": "X", "template": "novel"})
	assertError(t, w, body, http.StatusUnprocessableEntity, "validation_error")

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w, body = s.serve(t, req)
	assertError(t, w, body, http.StatusUnprocessableEntity, "validation_error")
}

func TestUploadIndexQuery(t *testing.T) {
	s := newTestServer(t, true, 0)
	id := s.createProject(t, "Demo")

	w, body := s.do(t, http.MethodPost, "/projects/"+id+"/query", gin.H{"query": "What is Miranda?"})
	assertError(t, w, body, http.StatusUnprocessableEntity, "empty_index")

	w, body = s.upload(t, "/projects/"+id+"/upload?bucket=research", "about.txt",
		[]byte("Miranda is an AI writing platform."))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending", body["status"])
	docID := body["file_id"].(string)

	require.NoError(t, s.index.IndexDocument(context.Background(), id, docID))

	w, body = s.do(t, http.MethodPost, "/projects/"+id+"/query", gin.H{"query": "What is Miranda?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := body["query"].(map[string]any)
	assert.Contains(t, res["result"], "writing platform")
	assert.Equal(t, "hybrid", res["mode"])

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/index", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{docID}, body["index"].(map[string]any)["merged_ids"])

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestUpload_TooLarge(t *testing.T) {
	s := newTestServer(t, true, 16)
	id := s.createProject(t, "Demo")

	w, body := s.upload(t, "/projects/"+id+"/upload", "big.txt", bytes.Repeat([]byte("a"), 64))
	assertError(t, w, body, http.StatusRequestEntityTooLarge, "payload_too_large")

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestUploadToBucket_WrongProject(t *testing.T) {
	s := newTestServer(t, true, 0)
	a := s.createProject(t, "A")
	b := s.createProject(t, "B")

	w, body := s.do(t, http.MethodPost, "/projects/"+a+"/buckets", gin.H{"name": "research"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bucketID := body["bucket"].(map[string]any)["id"].(string)

	w, body = s.upload(t, "/projects/"+b+"/buckets/"+bucketID+"/documents", "a.txt", []byte("text"))
	assertError(t, w, body, http.StatusNotFound, "not_found")

	w, _ = s.upload(t, "/projects/"+a+"/buckets/"+bucketID+"/documents", "a.txt", []byte("text"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestTables(t *testing.T) {
	s := newTestServer(t, true, 0)
	id := s.createProject(t, "Demo")

	w, body := s.do(t, http.MethodPost, "/projects/"+id+"/tables", gin.H{
		"name":    "Cast",
		"columns": []gin.H{{"name": "name", "type": "text"}, {"name": "age", "type": "number"}},
		"rows":    []gin.H{{"name": "Vera", "age": 41}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tableID := body["table"].(map[string]any)["id"].(string)

	w, body = s.do(t, http.MethodPost, "/projects/"+id+"/tables/"+tableID+"/rows", gin.H{
		"rows": []gin.H{{"name": "Theo", "age": "old"}},
	})
	assertError(t, w, body, http.StatusUnprocessableEntity, "validation_error")

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/tables/"+tableID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["table"].(map[string]any)["rows"], 1)
}

func TestBrainstormWriteExport(t *testing.T) {
	s := newTestServer(t, true, 0)
	id := s.createProject(t, "Night Heist")

	w, body := s.do(t, http.MethodPost, "/api/brainstorm", gin.H{"project_id": id, "focus": "the vault"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, body["ideas"], 3)
	brainstormID := body["brainstorm_id"].(string)

	w, body = s.do(t, http.MethodPost, "/api/write", gin.H{
		"project_id": id, "brainstorm_id": brainstormID, "length": "short",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	contentID := body["content_id"].(string)
	assert.Greater(t, body["word_count"], float64(0))

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/contents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, _ = s.do(t, http.MethodGet, "/projects/"+id+"/contents/"+contentID+"/export?format=md", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "The vault opens at midnight")

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/contents/"+contentID+"/export?format=pdf", nil)
	assertError(t, w, body, http.StatusUnprocessableEntity, "validation_error")
}

func TestGeneration_NotConfigured(t *testing.T) {
	s := newTestServer(t, false, 0)
	id := s.createProject(t, "Demo")

	w, body := s.do(t, http.MethodPost, "/api/brainstorm", gin.H{"project_id": id})
	assertError(t, w, body, http.StatusServiceUnavailable, "configuration_error")

	w, body = s.do(t, http.MethodGet, "/projects/"+id+"/brainstorms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestQueryText(t *testing.T) {
	s := newTestServer(t, true, 0)

	w, body := s.do(t, http.MethodPost, "/api/query-text", gin.H{
		"text":  "The lighthouse keeper hides the map under the stairs.",
		"query": "Where is the map?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, body["query"].(map[string]any)["result"], "stairs")

	w, body = s.do(t, http.MethodPost, "/api/query-text", gin.H{"text": "   "})
	assertError(t, w, body, http.StatusUnprocessableEntity, "validation_error")
}
