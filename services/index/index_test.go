package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meghashyamc/docsearch/db/kvdb"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/meghashyamc/docsearch/services/generate"
	"github.com/meghashyamc/docsearch/validation"
	"github.com/stretchr/testify/require"
)

const testPayloadPath = "../../searchindex/testdata/search_index.js"

type testService struct {
	*Service
	searchDB *searchdb.BleveDB
}

func newTestLogger() logger.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	return slog.New(handler)
}

func newTestService(t *testing.T, generator PayloadGenerator) *testService {
	t.Helper()
	assert := require.New(t)
	storage := t.TempDir()
	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, filepath.Join(storage, "search.bleve"))
	assert.NoError(err, "could not create search database")
	kvDB, err := kvdb.New(testLogger, filepath.Join(storage, "metadata.db"))
	assert.NoError(err, "could not create kv database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	if generator == nil {
		generator = generate.New(testLogger, generate.Options{PrettyURLs: true})
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		require.NoError(t, searchDB.Close(), "could not close search database")
		require.NoError(t, kvDB.Close(), "could not close kv database")
	})

	return &testService{
		Service:  New(ctx, testLogger, searchDB, kvDB, validator, generator),
		searchDB: searchDB,
	}
}

func copyTestPayload(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(testPayloadPath)
	require.NoError(t, err, "could not read test payload")
	payloadPath := filepath.Join(dir, "search_index.js")
	require.NoError(t, os.WriteFile(payloadPath, data, 0644))
	return payloadPath
}

func buildAndWait(t *testing.T, service *testService, sourcePath string) *kvdb.RequestStatus {
	t.Helper()
	requestID, err := service.Build(sourcePath)
	require.NoError(t, err, "could not start index build")

	maxWaitForIndexCreation := 10 * time.Second
	for startTime := time.Now().UTC(); time.Since(startTime) < maxWaitForIndexCreation; time.Sleep(50 * time.Millisecond) {
		status, err := service.GetStatus(requestID)
		require.NoError(t, err)
		if status.Progress == ProgressStatusComplete || status.Progress == ProgressStatusFailed {
			return status
		}
	}
	require.Fail(t, "timed out waiting for index creation", requestID)
	return nil
}

func docCount(t *testing.T, service *testService) int {
	t.Helper()
	count, err := service.searchDB.GetDocCount()
	require.NoError(t, err, "could not get document count")
	return int(count)
}

func TestBuildFromPayloadFile(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, nil)
	payloadPath := copyTestPayload(t, t.TempDir())

	status := buildAndWait(t, service, payloadPath)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
	assert.Equal(10, status.Records)
	assert.False(status.Skipped)
	assert.Equal(10, docCount(t, service))

	data, err := os.ReadFile(payloadPath)
	assert.NoError(err)
	expected, _, err := searchindex.Decode(data)
	assert.NoError(err)
	exported, err := service.Export(payloadPath)
	assert.NoError(err)
	assert.True(searchindex.Equal(expected, exported))

	status = buildAndWait(t, service, payloadPath)
	assert.Equal(ProgressStatusComplete, status.Progress)
	assert.True(status.Skipped, "an unchanged payload must not be re-indexed")
	assert.Equal(10, docCount(t, service))
}

func TestRebuildDropsStaleRecords(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, nil)
	payloadPath := copyTestPayload(t, t.TempDir())

	status := buildAndWait(t, service, payloadPath)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)

	shorter := `var documenterSearchIndex = {"docs":
[{"location":"#","page":"Home","title":"Home","text":"Rewritten home page","category":"page"}]
}
`
	assert.NoError(os.WriteFile(payloadPath, []byte(shorter), 0644))
	future := time.Now().Add(time.Hour)
	assert.NoError(os.Chtimes(payloadPath, future, future))

	status = buildAndWait(t, service, payloadPath)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
	assert.False(status.Skipped)
	assert.Equal(1, status.Records)
	assert.Equal(1, docCount(t, service))

	response, err := service.searchDB.Search("rewritten", "", 10, 0)
	assert.NoError(err)
	assert.Equal(uint64(1), response.Total)
	assert.Equal(payloadPath, response.Results[0].Source)
}

func TestBuildFromMarkdownAndPurgeDeletedSources(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, nil)
	payloadPath := copyTestPayload(t, t.TempDir())

	docsDir := t.TempDir()
	assert.NoError(os.WriteFile(filepath.Join(docsDir, "index.md"), []byte("# Home\n\nWelcome to the knot documentation.\n"), 0644))
	assert.NoError(os.WriteFile(filepath.Join(docsDir, "usage.md"), []byte("# Usage\n\nEvaluate a spline.\n"), 0644))

	status := buildAndWait(t, service, payloadPath)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)

	status = buildAndWait(t, service, docsDir)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
	assert.Equal(4, status.Records)
	assert.Equal(14, docCount(t, service))

	exported, err := service.Export(docsDir)
	assert.NoError(err)
	assert.Equal([]searchindex.Record{
		{Location: "#Home-1", Page: "Home", Title: "Home", Category: searchindex.CategorySection},
		{Location: "#", Page: "Home", Title: "Home", Text: "Welcome to the knot documentation.", Category: searchindex.CategoryPage},
		{Location: "usage/#Usage-1", Page: "Usage", Title: "Usage", Category: searchindex.CategorySection},
		{Location: "usage/#", Page: "Usage", Title: "Usage", Text: "Evaluate a spline.", Category: searchindex.CategoryPage},
	}, exported.Docs)

	combined, err := service.Export("")
	assert.NoError(err)
	assert.Len(combined.Docs, 14)

	assert.NoError(os.Remove(payloadPath))
	assert.NoError(os.WriteFile(filepath.Join(docsDir, "theory.md"), []byte("# Theory\n"), 0644))
	status = buildAndWait(t, service, docsDir)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
	assert.Equal(5, docCount(t, service))

	_, err = service.Export(payloadPath)
	assert.ErrorIs(err, ErrSourceNotFound)
	combined, err = service.Export("")
	assert.NoError(err)
	assert.Len(combined.Docs, 5)
}

func TestBuildTreatsEquivalentPathsAsOneSource(t *testing.T) {
	assert := require.New(t)
	service := newTestService(t, nil)

	docsDir := t.TempDir()
	assert.NoError(os.WriteFile(filepath.Join(docsDir, "index.md"), []byte("# Home\n\nWelcome.\n"), 0644))

	status := buildAndWait(t, service, docsDir)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
	assert.False(status.Skipped)

	for _, equivalent := range []string{docsDir + "/", docsDir + "/./", filepath.Join(docsDir, "sub") + "/.."} {
		status = buildAndWait(t, service, equivalent)
		assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
		assert.Equal(docsDir, status.Source)
		assert.True(status.Skipped, equivalent)
	}
	assert.Equal(2, docCount(t, service))

	exported, err := service.Export(docsDir + "/")
	assert.NoError(err)
	assert.Len(exported.Docs, 2)

	combined, err := service.Export("")
	assert.NoError(err)
	assert.Len(combined.Docs, 2)
}

func TestBuildFailures(t *testing.T) {
	service := newTestService(t, nil)
	dir := t.TempDir()

	failureTestCases := []struct {
		name            string
		payload         string
		expectedErrPart string
	}{
		{
			name:            "Unknown category",
			payload:         `{"docs":[{"location":"#","page":"Home","title":"Home","text":"x","category":"chapter"}]}`,
			expectedErrPart: "record 0: field 'category': unknown category",
		},
		{
			name:            "Absolute location",
			payload:         `{"docs":[{"location":"#","page":"","title":"","text":"","category":"page"},{"location":"/abs/#","page":"","title":"","text":"","category":"page"}]}`,
			expectedErrPart: "record 1: field 'location': invalid location",
		},
		{
			name:            "Malformed payload",
			payload:         `var documenterSearchIndex = {"docs":[`,
			expectedErrPart: searchindex.ErrMalformedPayload.Error(),
		},
		{
			name:            "Missing docs",
			payload:         `{}`,
			expectedErrPart: searchindex.ErrMissingDocs.Error(),
		},
	}

	for i, testCase := range failureTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			payloadPath := filepath.Join(dir, string(rune('a'+i))+".json")
			assert.NoError(os.WriteFile(payloadPath, []byte(testCase.payload), 0644))

			status := buildAndWait(t, service, payloadPath)
			assert.Equal(ProgressStatusFailed, status.Progress)
			assert.Contains(status.Error, testCase.expectedErrPart)
		})
	}

	require.Equal(t, 0, docCount(t, service))
}

type blockingGenerator struct {
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, rootPath string) (*searchindex.Index, []generate.SourceFile, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return &searchindex.Index{Docs: []searchindex.Record{}}, nil, nil
}

func TestBuildRejectsConcurrentRequests(t *testing.T) {
	assert := require.New(t)
	generator := &blockingGenerator{release: make(chan struct{})}
	service := newTestService(t, generator)
	docsDir := t.TempDir()

	requestID, err := service.Build(docsDir)
	assert.NoError(err)

	_, err = service.Build(docsDir)
	assert.ErrorIs(err, ErrIndexingInProgress)

	close(generator.release)
	for startTime := time.Now(); time.Since(startTime) < 10*time.Second; time.Sleep(20 * time.Millisecond) {
		status, err := service.GetStatus(requestID)
		assert.NoError(err)
		if status.Progress == ProgressStatusComplete {
			break
		}
	}

	status := buildAndWait(t, service, docsDir)
	assert.Equal(ProgressStatusComplete, status.Progress, status.Error)
}

func TestGetStatusUnknownRequest(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.GetStatus("does-not-exist")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestDocumentIDs(t *testing.T) {
	assert := require.New(t)

	assert.Equal(documentID("/docs", 3), documentID("/docs", 3))
	assert.NotEqual(documentID("/docs", 3), documentID("/docs", 4))
	assert.NotEqual(documentID("/docs", 3), documentID("/other", 3))

	assert.Nil(documentIDs("/docs", 5, 5))
	assert.Nil(documentIDs("/docs", 5, 2))
	assert.Equal([]string{documentID("/docs", 2), documentID("/docs", 3)}, documentIDs("/docs", 2, 4))
}
