package searchdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/docsearch/logger"
)

const IndexingBatchSize = 100
const snippetContext = 100

const (
	indexFieldSource   = "source"
	indexFieldOrdinal  = "ordinal"
	indexFieldLocation = "location"
	indexFieldPage     = "page"
	indexFieldTitle    = "title"
	indexFieldText     = "text"
	indexFieldCategory = "category"
)

type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index
}

func New(logger logger.Logger, indexPath string) (*BleveDB, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		logger.Error("could not create index directory", "path", indexPath, "err", err.Error())
		return nil, fmt.Errorf("could not create index directory: %w", err)
	}

	mapping := createIndexMapping()
	index, err := bleve.New(indexPath, mapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "path", indexPath, "err", err.Error())
			return nil, err
		}
	}
	return &BleveDB{indexPath: indexPath, logger: logger, index: index}, nil
}

// BuildIndex upserts documents by ID in batches of IndexingBatchSize.
func (b *BleveDB) BuildIndex(documents []*Document) error {

	batch := b.index.NewBatch()

	for i, doc := range documents {

		err := batch.Index(doc.ID, doc)
		if err != nil {
			b.logger.Error("could not index document", "id", doc.ID, "err", err.Error())
			return err
		}

		if (i+1)%IndexingBatchSize == 0 {
			err = b.index.Batch(batch)
			if err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}
	}

	return nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Exact-match fields
	for _, field := range []string{indexFieldLocation, indexFieldCategory, indexFieldSource} {
		docMapping.AddFieldMappingsAt(field, bleve.NewKeywordFieldMapping())
	}

	pageFieldMapping := bleve.NewTextFieldMapping()
	pageFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldPage, pageFieldMapping)

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldTitle, titleFieldMapping)

	// Stored so that snippets can be cut from it
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(indexFieldText, textFieldMapping)

	docMapping.AddFieldMappingsAt(indexFieldOrdinal, bleve.NewNumericFieldMapping())

	indexMapping.AddDocumentMapping("_default", docMapping)
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

func (b *BleveDB) Search(queryString string, category string, limit int, offset int) (*Response, error) {
	start := time.Now()

	searchQuery := b.buildSearchQuery(queryString, category)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, offset, false)
	searchRequest.Fields = []string{indexFieldSource, indexFieldLocation, indexFieldPage, indexFieldTitle, indexFieldText, indexFieldCategory}
	searchRequest.IncludeLocations = true
	searchRequest.SortBy([]string{"-_score", indexFieldSource, indexFieldOrdinal})

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		result := Result{
			ID:       hit.ID,
			Score:    hit.Score,
			Source:   stringField(hit, indexFieldSource),
			Location: stringField(hit, indexFieldLocation),
			Page:     stringField(hit, indexFieldPage),
			Title:    stringField(hit, indexFieldTitle),
			Category: stringField(hit, indexFieldCategory),
		}
		result.Snippet = extractSnippet(stringField(hit, indexFieldText), hit.Locations)

		results[i] = result
	}

	searchTime := time.Since(start)

	response := &Response{
		Results:    results,
		Total:      searchResult.Total,
		MaxScore:   searchResult.MaxScore,
		SearchTime: searchTime.String(),
	}

	return response, nil
}

func stringField(hit *search.DocumentMatch, field string) string {
	value, _ := hit.Fields[field].(string)
	return value
}

func (b *BleveDB) buildSearchQuery(queryString string, category string) query.Query {

	const (
		boostForText         = 3.0
		boostForTitle        = 2.5
		boostForPage         = 1.5
		boostForLocation     = 1.0
		boostForPhraseMatch  = 5.0
		boostForPartialMatch = 1.5
	)

	quoted, remaining := parseQuotedQuery(strings.TrimSpace(queryString))

	var textQuery query.Query
	if len(quoted) == 0 && remaining == "" {
		textQuery = bleve.NewMatchAllQuery()
	} else {
		disjunctQuery := bleve.NewDisjunctionQuery()

		if remaining != "" {
			lowered := strings.ToLower(remaining)

			textMatch := bleve.NewMatchQuery(lowered)
			textMatch.SetField(indexFieldText)
			textMatch.SetBoost(boostForText)
			disjunctQuery.AddQuery(textMatch)

			titleMatch := bleve.NewMatchQuery(lowered)
			titleMatch.SetField(indexFieldTitle)
			titleMatch.SetBoost(boostForTitle)
			disjunctQuery.AddQuery(titleMatch)

			pageMatch := bleve.NewMatchQuery(lowered)
			pageMatch.SetField(indexFieldPage)
			pageMatch.SetBoost(boostForPage)
			disjunctQuery.AddQuery(pageMatch)

			// Locations are keywords, so only an exact location matches
			locationMatch := bleve.NewTermQuery(remaining)
			locationMatch.SetField(indexFieldLocation)
			locationMatch.SetBoost(boostForLocation)
			disjunctQuery.AddQuery(locationMatch)

			phraseMatch := bleve.NewMatchPhraseQuery(lowered)
			phraseMatch.SetField(indexFieldText)
			phraseMatch.SetBoost(boostForPhraseMatch)
			disjunctQuery.AddQuery(phraseMatch)

			for _, term := range strings.Fields(lowered) {
				if len(term) <= 2 {
					continue
				}
				for _, field := range []string{indexFieldText, indexFieldTitle} {
					prefixQuery := bleve.NewPrefixQuery(term)
					prefixQuery.SetField(field)
					prefixQuery.SetBoost(boostForPartialMatch)
					disjunctQuery.AddQuery(prefixQuery)
				}
			}
		}

		for _, phrase := range quoted {
			for _, field := range []string{indexFieldText, indexFieldTitle} {
				phraseQuery := bleve.NewMatchPhraseQuery(strings.ToLower(phrase))
				phraseQuery.SetField(field)
				phraseQuery.SetBoost(boostForPhraseMatch)
				disjunctQuery.AddQuery(phraseQuery)
			}
		}

		textQuery = disjunctQuery
	}

	if category == "" {
		return textQuery
	}

	categoryQuery := bleve.NewTermQuery(category)
	categoryQuery.SetField(indexFieldCategory)

	return bleve.NewConjunctionQuery(textQuery, categoryQuery)
}

// parseQuotedQuery splits a query into its quoted phrases and the remaining
// unquoted terms. An unterminated quote is treated as plain text.
func parseQuotedQuery(input string) ([]string, string) {
	var quoted []string
	var remaining strings.Builder

	for {
		start := strings.IndexByte(input, '"')
		if start == -1 {
			remaining.WriteString(input)
			break
		}

		end := strings.IndexByte(input[start+1:], '"')
		if end == -1 {
			remaining.WriteString(input[:start])
			remaining.WriteString(" ")
			remaining.WriteString(input[start+1:])
			break
		}
		end += start + 1

		remaining.WriteString(input[:start])
		remaining.WriteString(" ")
		if phrase := strings.Join(strings.Fields(input[start+1:end]), " "); phrase != "" {
			quoted = append(quoted, phrase)
		}
		input = input[end+1:]
	}

	return quoted, strings.Join(strings.Fields(remaining.String()), " ")
}

func (b *BleveDB) DeleteDocuments(documentIDs []string) error {
	batch := b.index.NewBatch()

	for i, docID := range documentIDs {
		batch.Delete(docID)

		if (i+1)%IndexingBatchSize == 0 {
			err := b.index.Batch(batch)
			if err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}

// extractSnippet cuts a window around the earliest text match.
func extractSnippet(text string, locations search.FieldTermLocationMap) string {
	textLocations, hasTextMatch := locations[indexFieldText]
	if !hasTextMatch || len(textLocations) == 0 || text == "" {
		return ""
	}

	found := false
	var matchStart, matchEnd uint64
	for _, termLocations := range textLocations {
		for _, location := range termLocations {
			if location == nil {
				continue
			}
			if !found || location.Start < matchStart {
				matchStart, matchEnd = location.Start, location.End
				found = true
			}
		}
	}

	textSize := int64(len(text))
	if !found || matchStart >= uint64(textSize) {
		return ""
	}
	if matchEnd > uint64(textSize) {
		matchEnd = uint64(textSize)
	}

	snippetStart := max(0, int64(matchStart)-int64(snippetContext))
	snippetEnd := min(textSize, int64(matchEnd)+int64(snippetContext))

	for snippetStart < snippetEnd && !utf8.RuneStart(text[snippetStart]) {
		snippetStart++
	}
	for snippetEnd < textSize && !utf8.RuneStart(text[snippetEnd]) {
		snippetEnd++
	}

	return formatSnippet(text[snippetStart:snippetEnd], snippetStart, snippetEnd, textSize)
}

func formatSnippet(snippet string, snippetStart int64, snippetEnd int64, textSize int64) string {
	snippet = strings.TrimSpace(snippet)
	if snippetStart > 0 {
		snippet = "..." + snippet
	}
	if snippetEnd < textSize {
		snippet = snippet + "..."
	}

	return snippet
}
