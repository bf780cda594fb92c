package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/docsearch/db/kvdb"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/meghashyamc/docsearch/services/generate"
)

// Indexer represents the search database operations needed for index creation
type Indexer interface {
	BuildIndex(documents []*searchdb.Document) error
	DeleteDocuments(documentIDs []string) error
}

type RecordValidator interface {
	ValidateIndex(idx *searchindex.Index) error
}

type PayloadGenerator interface {
	Generate(ctx context.Context, rootPath string) (*searchindex.Index, []generate.SourceFile, error)
}

const (
	ProgressStatusStep1    = 10
	ProgressStatusStep2    = 20
	ProgressStatusComplete = 100
	ProgressStatusFailed   = -1

	maxIndexBuildingTime = 30 * time.Minute
)

var (
	ErrIndexingInProgress = errors.New("indexing already in progress")
	ErrRequestNotFound    = errors.New("request not found")
	ErrSourceNotFound     = errors.New("source not indexed")
)

type Service struct {
	logger        logger.Logger
	indexer       Indexer
	metadataStore MetadataStore
	validator     RecordValidator
	generator     PayloadGenerator
	buildIndexC   chan indexRequest
	building      atomic.Bool
}

type indexRequest struct {
	sourcePath string
	requestID  string
}

func New(ctx context.Context, logger logger.Logger, indexer Indexer, metadataStore MetadataStore, validator RecordValidator, generator PayloadGenerator) *Service {
	indexService := &Service{
		logger:        logger,
		indexer:       indexer,
		metadataStore: metadataStore,
		validator:     validator,
		generator:     generator,
		buildIndexC:   make(chan indexRequest, 1),
	}

	go indexService.build(ctx)
	return indexService
}

// Build queues an index build for a payload file or a markdown source
// directory and returns the request ID to poll. Only one build runs at a time.
// The path is cleaned first, since it keys stored metadata and document IDs.
func (s *Service) Build(sourcePath string) (string, error) {
	sourcePath = filepath.Clean(sourcePath)
	if !s.building.CompareAndSwap(false, true) {
		s.logger.Warn("request to index while indexing is already in progress", "path", sourcePath)
		return "", ErrIndexingInProgress
	}

	requestID := uuid.New().String()
	s.setRequestStatus(requestID, kvdb.RequestStatus{Progress: 0, Source: sourcePath})

	// This leads to s.buildIndex being called
	s.buildIndexC <- indexRequest{sourcePath: sourcePath, requestID: requestID}

	return requestID, nil
}

// GetStatus retrieves the progress status for index creation
func (s *Service) GetStatus(requestID string) (*kvdb.RequestStatus, error) {
	value, err := s.metadataStore.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) || errors.Is(err, kvdb.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		return nil, err
	}

	var status kvdb.RequestStatus
	if err := json.Unmarshal([]byte(value), &status); err != nil {
		return nil, fmt.Errorf("invalid status value: %w", err)
	}

	return &status, nil
}

// Export returns the stored payload of one source, or of every indexed
// source in key order when source is empty.
func (s *Service) Export(source string) (*searchindex.Index, error) {
	if source != "" {
		source = filepath.Clean(source)
		idx, err := s.getPayload(source)
		if errors.Is(err, kvdb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return idx, err
	}

	sourcePaths, err := s.metadataStore.GetAllKeys(kvdb.PayloadsBucket)
	if err != nil {
		s.logger.Error("failed to list stored payloads", "err", err.Error())
		return nil, fmt.Errorf("failed to list stored payloads: %w", err)
	}

	combined := &searchindex.Index{Docs: []searchindex.Record{}}
	for _, sourcePath := range sourcePaths {
		idx, err := s.getPayload(sourcePath)
		if err != nil {
			return nil, err
		}
		combined.Docs = append(combined.Docs, idx.Docs...)
	}

	return combined, nil
}

func (s *Service) build(ctx context.Context) {

	for {
		select {
		case req := <-s.buildIndexC:
			status := s.buildIndex(ctx, req)

			// Release before publishing the final status so that a caller who
			// sees the build finish can start the next one straight away.
			s.building.Store(false)
			s.setRequestStatus(req.requestID, status)
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) buildIndex(ctx context.Context, req indexRequest) kvdb.RequestStatus {
	ctx, cancel := context.WithTimeout(ctx, maxIndexBuildingTime)
	defer cancel()

	status := kvdb.RequestStatus{Source: req.sourcePath}
	fail := func(err error) kvdb.RequestStatus {
		s.logger.Error("failed to create index", "request_id", req.requestID, "path", req.sourcePath, "err", err.Error())
		status.Progress = ProgressStatusFailed
		status.Error = err.Error()
		return status
	}

	source, err := s.loadSource(ctx, req.sourcePath)
	if err != nil {
		return fail(err)
	}
	status.Records = len(source.index.Docs)

	// Update progress to ProgressStatusStep1% after the source is loaded
	status.Progress = ProgressStatusStep1
	s.setRequestStatus(req.requestID, status)

	if err := s.removeDeletedSources(); err != nil {
		return fail(err)
	}

	// Update progress to ProgressStatusStep2% after sources that vanished from disk are purged
	status.Progress = ProgressStatusStep2
	s.setRequestStatus(req.requestID, status)

	if s.isSourceUnchanged(source) {
		s.logger.Info("source unchanged since last indexing, skipping", "path", req.sourcePath)
		status.Skipped = true
		status.Progress = ProgressStatusComplete
		return status
	}

	if err := s.validator.ValidateIndex(source.index); err != nil {
		return fail(fmt.Errorf("invalid search index: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	s.logger.Info("building index of records...", "path", req.sourcePath, "num_of_records", len(source.index.Docs))
	if err := s.indexSource(source, time.Now().UTC()); err != nil {
		return fail(err)
	}
	s.logger.Info("finished building index successfully!", "path", req.sourcePath)

	status.Progress = ProgressStatusComplete
	return status
}

func (s *Service) setRequestStatus(requestID string, status kvdb.RequestStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Error("failed to marshal request status", "request_id", requestID, "err", err.Error())
		return
	}
	if err := s.metadataStore.Set(kvdb.RequestsBucket, requestID, string(data)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "progress", status.Progress, "err", err.Error())
	}
}
