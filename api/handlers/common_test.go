// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docsearch/config"
	"github.com/meghashyamc/docsearch/db/kvdb"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/services/generate"
	"github.com/meghashyamc/docsearch/services/index"
	"github.com/meghashyamc/docsearch/validation"
	"github.com/stretchr/testify/require"
)

const testPayloadPath = "../../searchindex/testdata/search_index.js"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testPages = map[string]string{
	"index.md":  "# Knots\n\nThis is test content for the home page.\n",
	"theory.md": "# Theory\n\n## Knot sets\n\nA knot set is a non-decreasing sequence.\n\n## Usage\n\nEvaluate the basis functions.\n",
	"usage.md":  "# Usage\n\nHello World from the usage page.\n",
}

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

type testServer struct {
	router   *gin.Engine
	searchDB *searchdb.BleveDB
	index    *index.Service
	docsDir  string
	payload  string
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	t.Setenv("ENV", "test")
	t.Setenv("STORAGE_PATH", t.TempDir())

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	docsDir := t.TempDir()
	for relPath, content := range testPages {
		fullPath := filepath.Join(docsDir, relPath)
		err := os.MkdirAll(filepath.Dir(fullPath), 0755)
		assert.NoError(err, "could not create test sub-directory")
		err = os.WriteFile(fullPath, []byte(content), 0644)
		assert.NoError(err, "could not write test file")
	}

	payloadData, err := os.ReadFile(testPayloadPath)
	assert.NoError(err, "could not read test payload")
	payloadPath := filepath.Join(t.TempDir(), "search_index.js")
	assert.NoError(os.WriteFile(payloadPath, payloadData, 0644), "could not write test payload")

	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, cfg.GetIndexPath())
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.New(testLogger, cfg.GetKVDBPath())
	assert.NoError(err, "could not create kv database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")
	generator := generate.New(testLogger, generate.Options{PrettyURLs: cfg.GetPrettyURLs(), Pages: cfg.GetPageOrder()})

	ctx, cancel := context.WithCancel(context.Background())
	indexService := index.New(ctx, testLogger, searchDB, kvDB, validator, generator)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(router, testLogger, indexService, validator)
	SetupSearch(router, testLogger, searchDB, validator)
	SetupExport(router, testLogger, indexService, validator, cfg.GetSearchIndexVariable())

	t.Cleanup(func() {
		cancel()
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, searchDB: searchDB, index: indexService, docsDir: docsDir, payload: payloadPath}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// createIndexAndWait indexes path through the API and polls until the build has finished.
func createIndexAndWait(server *testServer, assert *require.Assertions, path string) map[string]any {
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/index", defaultTestRequestHeaders, map[string]any{"path": path}, nil)
	assert.Equal(http.StatusAccepted, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))

	var accepted struct {
		Data IndexResponse `json:"data"`
	}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &accepted), "could not unmarshal gotten response")

	maxWaitForIndexCreation := 10 * time.Second
	for startTime := time.Now().UTC(); time.Since(startTime) < maxWaitForIndexCreation; time.Sleep(50 * time.Millisecond) {
		w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/index/"+accepted.Data.ID, nil, nil, nil)
		if w.Code == http.StatusAccepted {
			continue
		}
		assert.Equal(http.StatusOK, w.Code, fmt.Sprintf("index creation failed: %s", w.Body.String()))

		var status map[string]any
		assert.NoError(json.Unmarshal(w.Body.Bytes(), &status))
		return status["data"].(map[string]any)
	}
	assert.Fail("timed out waiting for index creation: ", accepted.Data.ID)
	return nil
}
