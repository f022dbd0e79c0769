package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/plancheck/internal/llm"
	"github.com/ppiankov/plancheck/internal/metrics"
	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/pipeline"
	"github.com/ppiankov/plancheck/internal/store"
)

const drawing = "CORRIDOR WIDTH 1200 MM\nTITLE BLOCK REV C"

type testEnv struct {
	server *Server
	store  *store.FileStore
}

func newTestServer(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.HTTP.RespectRobots = false
	cfg.LLM.MaxRetries = 1

	fs := store.NewFileStore(t.TempDir())
	m := metrics.New()
	p := pipeline.New(cfg, pipeline.Deps{Store: fs, Provider: provider, Metrics: m})

	srvCfg := cfg.Server
	srvCfg.MaxUploadBytes = 1 << 20
	return &testEnv{server: New(p, m, srvCfg), store: fs}
}

func (e *testEnv) seed(t *testing.T, authority string) {
	t.Helper()
	rules, err := model.ParseRuleSet([]byte(`[
		{"id":"DLF-1","technical_check":{"type":"numeric","operator":">=","value":900,"units":"mm"}},
		{"id":"DLF-2","technical_check":{"type":"presence","example_text_matches":["title block"]}}
	]`))
	require.NoError(t, err)
	require.NoError(t, e.store.Save(context.Background(), authority, rules))
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path, authority, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if authority != "" {
		require.NoError(t, mw.WriteField("authority", authority))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestRules(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/rules?authority=dlf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "DLF", body["authority"])
	assert.EqualValues(t, 2, body["count"])
	assert.Len(t, body["rules"], 2)
}

func TestRules_NotFound(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/rules?authority=missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rules not found", decode(t, rec)["error"])
}

func TestRuleSets(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")
	env.seed(t, "NCC")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/rule-sets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])
}

func TestCheckDrawing_Multipart(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")

	rec := env.do(multipartRequest(t, "/check-drawing", "DLF", "a-101.txt", drawing))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report model.CheckReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "DLF", report.Authority)
	require.Len(t, report.Results, 2)
	assert.Equal(t, model.StatusPass, report.Results[0].Status)
	assert.Equal(t, model.StatusPass, report.Results[1].Status)
	assert.Equal(t, 100, report.Summary.Index)
}

func TestCheckDrawing_JSON(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")

	req := httptest.NewRequest(http.MethodPost, "/check-drawing", strings.NewReader(`{"authority":"DLF","text":"corridor 850 mm"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report model.CheckReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 0, report.Summary.Passed)
	assert.Equal(t, 2, report.Summary.Failed)
}

func TestCheckDrawing_Errors(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"rules not found", multipartRequest(t, "/check-drawing", "OTHER", "a.txt", drawing), http.StatusNotFound},
		{"missing file", multipartRequest(t, "/check-drawing", "DLF", "", ""), http.StatusBadRequest},
		{"unsupported document", multipartRequest(t, "/check-drawing", "DLF", "scan.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), http.StatusBadRequest},
		{"too large", multipartRequest(t, "/check-drawing", "DLF", "big.txt", strings.Repeat("9", 2<<20)), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}

	emptyText := httptest.NewRequest(http.MethodPost, "/check-drawing", strings.NewReader(`{"authority":"DLF"}`))
	emptyText.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(emptyText).Code)
}

func TestExtractFromFile(t *testing.T) {
	env := newTestServer(t, llm.NewDevProvider())

	rec := env.do(multipartRequest(t, "/extract-from-file", "ncc", "part-d.txt", "Part D\n\nCorridors at least 900 mm."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "NCC", body["authority"])
	assert.EqualValues(t, 2, body["count"])

	saved, err := env.store.Load(context.Background(), "NCC")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestExtractFromFile_NoProvider(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(multipartRequest(t, "/extract-from-file", "ncc", "part-d.txt", "Part D"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExtractFromURL(t *testing.T) {
	env := newTestServer(t, llm.NewDevProvider())

	docs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "Corridor width not less than 900 mm.")
	}))
	defer docs.Close()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/extract-from-url", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return env.do(req)
	}

	rec := post(fmt.Sprintf(`{"pdf_url":%q,"authority":"DLF"}`, docs.URL+"/part-d.txt"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DLF", decode(t, rec)["authority"])

	rec = post(`{"authority":"DLF"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pdf_url required", decode(t, rec)["error"])

	rec = post(fmt.Sprintf(`{"pdf_url":%q}`, docs.URL+"/missing.pdf"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	env.seed(t, "DLF")

	env.do(multipartRequest(t, "/check-drawing", "DLF", "a-101.txt", drawing))
	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plancheck_checks_total")
}
