package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/docsearch/db/kvdb"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/services/generate"
	"github.com/meghashyamc/docsearch/searchindex"
)

// loadedSource is a payload read from disk or generated from markdown pages.
type loadedSource struct {
	path    string
	kind    kvdb.SourceKind
	modTime time.Time
	index   *searchindex.Index
}

func (s *Service) loadSource(ctx context.Context, sourcePath string) (*loadedSource, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		s.logger.Error("could not stat source", "path", sourcePath, "err", err.Error())
		return nil, fmt.Errorf("could not stat source: %w", err)
	}

	if info.IsDir() {
		idx, sourceFiles, err := s.generator.Generate(ctx, sourcePath)
		if err != nil {
			return nil, fmt.Errorf("could not generate search index: %w", err)
		}

		modTime := generate.LatestModTime(sourceFiles)
		if info.ModTime().After(modTime) {
			modTime = info.ModTime()
		}

		return &loadedSource{path: sourcePath, kind: kvdb.SourceKindMarkdown, modTime: modTime, index: idx}, nil
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		s.logger.Error("could not read payload", "path", sourcePath, "err", err.Error())
		return nil, fmt.Errorf("could not read payload: %w", err)
	}

	idx, _, err := searchindex.Decode(data)
	if err != nil {
		s.logger.Error("could not decode payload", "path", sourcePath, "err", err.Error())
		return nil, fmt.Errorf("could not decode payload: %w", err)
	}

	return &loadedSource{path: sourcePath, kind: kvdb.SourceKindPayload, modTime: info.ModTime(), index: idx}, nil
}

// isSourceUnchanged reports whether the source was indexed after its last
// modification and still produces the payload that was stored back then.
func (s *Service) isSourceUnchanged(source *loadedSource) bool {
	metadata, err := s.getSourceMetadata(source.path)
	if err != nil {
		if !errors.Is(err, kvdb.ErrNotFound) {
			s.logger.Error("failed to get source metadata", "path", source.path, "err", err.Error())
		}
		return false
	}

	if source.modTime.After(metadata.LastIndexed) {
		return false
	}

	stored, err := s.getPayload(source.path)
	if err != nil {
		s.logger.Warn("failed to get stored payload", "path", source.path, "err", err.Error())
		return false
	}

	return searchindex.Equal(stored, source.index)
}

// indexSource upserts every record of the source and drops ordinals left over
// from a previous, longer version of it.
func (s *Service) indexSource(source *loadedSource, indexTime time.Time) error {
	previousRecords := 0
	if metadata, err := s.getSourceMetadata(source.path); err == nil {
		previousRecords = metadata.Records
	}

	documents := make([]*searchdb.Document, len(source.index.Docs))
	for i, record := range source.index.Docs {
		documents[i] = &searchdb.Document{
			ID:       documentID(source.path, i),
			Source:   source.path,
			Ordinal:  i,
			Location: record.Location,
			Page:     record.Page,
			Title:    record.Title,
			Text:     record.Text,
			Category: string(record.Category),
		}
	}

	if err := s.indexer.BuildIndex(documents); err != nil {
		s.logger.Error("failed to add documents to search index", "path", source.path, "err", err.Error())
		return fmt.Errorf("failed to add documents to search index: %w", err)
	}

	if err := s.indexer.DeleteDocuments(documentIDs(source.path, len(documents), previousRecords)); err != nil {
		s.logger.Error("failed to delete stale documents from search index", "path", source.path, "err", err.Error())
		return fmt.Errorf("failed to delete stale documents from search index: %w", err)
	}

	if err := s.setPayload(source.path, source.index); err != nil {
		return err
	}

	return s.setSourceMetadata(source.path, kvdb.SourceMetadata{
		LastIndexed: indexTime,
		Kind:        source.kind,
		Records:     len(documents),
	})
}

func (s *Service) removeDeletedSources() error {
	sourcePaths, err := s.metadataStore.GetAllKeys(kvdb.SourcesBucket)
	if err != nil {
		s.logger.Error("failed to get all keys from database", "err", err.Error())
		return fmt.Errorf("failed to get all keys from database: %w", err)
	}

	for _, sourcePath := range sourcePaths {
		if _, err := os.Stat(sourcePath); !os.IsNotExist(err) {
			continue
		}

		s.logger.Info("removing deleted source from index", "path", sourcePath)
		metadata, err := s.getSourceMetadata(sourcePath)
		if err != nil {
			return err
		}

		if err := s.indexer.DeleteDocuments(documentIDs(sourcePath, 0, metadata.Records)); err != nil {
			s.logger.Error("failed to delete documents from search index", "path", sourcePath, "err", err.Error())
			return fmt.Errorf("failed to delete documents from search index: %w", err)
		}

		if err := s.metadataStore.Delete(kvdb.PayloadsBucket, sourcePath); err != nil {
			s.logger.Error("failed to delete payload", "path", sourcePath, "err", err.Error())
		}
		if err := s.metadataStore.Delete(kvdb.SourcesBucket, sourcePath); err != nil {
			s.logger.Error("failed to delete source metadata", "path", sourcePath, "err", err.Error())
		}
	}

	return nil
}

var documentNamespace = uuid.NameSpaceURL

// documentID is stable for a given source and position, so re-indexing a
// source overwrites its previous documents in place.
func documentID(sourcePath string, ordinal int) string {
	return uuid.NewSHA1(documentNamespace, fmt.Appendf(nil, "%s#%d", sourcePath, ordinal)).String()
}

func documentIDs(sourcePath string, from int, to int) []string {
	if to <= from {
		return nil
	}
	ids := make([]string, 0, to-from)
	for ordinal := from; ordinal < to; ordinal++ {
		ids = append(ids, documentID(sourcePath, ordinal))
	}
	return ids
}

func (s *Service) setSourceMetadata(sourcePath string, metadata kvdb.SourceMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		s.logger.Error("failed to marshal metadata", "path", sourcePath, "err", err.Error())
		return fmt.Errorf("failed to marshal metadata for %s: %w", sourcePath, err)
	}

	if err := s.metadataStore.Set(kvdb.SourcesBucket, sourcePath, string(data)); err != nil {
		s.logger.Error("failed to set source metadata", "path", sourcePath, "err", err.Error())
		return err
	}

	return nil
}

func (s *Service) getSourceMetadata(sourcePath string) (*kvdb.SourceMetadata, error) {
	value, err := s.metadataStore.Get(kvdb.SourcesBucket, sourcePath)
	if err != nil {
		return nil, err
	}

	var metadata kvdb.SourceMetadata
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		s.logger.Error("failed to unmarshal metadata", "path", sourcePath, "err", err.Error())
		return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", sourcePath, err)
	}

	return &metadata, nil
}

func (s *Service) setPayload(sourcePath string, idx *searchindex.Index) error {
	var buf bytes.Buffer
	if err := searchindex.EncodeJSON(&buf, idx); err != nil {
		s.logger.Error("failed to encode payload", "path", sourcePath, "err", err.Error())
		return fmt.Errorf("failed to encode payload for %s: %w", sourcePath, err)
	}

	if err := s.metadataStore.Set(kvdb.PayloadsBucket, sourcePath, buf.String()); err != nil {
		s.logger.Error("failed to store payload", "path", sourcePath, "err", err.Error())
		return err
	}

	return nil
}

func (s *Service) getPayload(sourcePath string) (*searchindex.Index, error) {
	value, err := s.metadataStore.Get(kvdb.PayloadsBucket, sourcePath)
	if err != nil {
		return nil, err
	}

	idx, _, err := searchindex.Decode([]byte(value))
	if err != nil {
		s.logger.Error("failed to decode stored payload", "path", sourcePath, "err", err.Error())
		return nil, fmt.Errorf("failed to decode stored payload for %s: %w", sourcePath, err)
	}

	return idx, nil
}
