package search

import (
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
)

type Searcher interface {
	Search(queryString string, category string, limit int, offset int) (*searchdb.Response, error)
}

type Service struct {
	logger   logger.Logger
	searcher Searcher
}

func New(logger logger.Logger, searcher Searcher) *Service {
	return &Service{
		logger:   logger,
		searcher: searcher,
	}
}

// Search runs a full-text query over every indexed record, optionally
// restricted to one category.
func (s *Service) Search(queryString string, category string, limit int, offset int) (*searchdb.Response, error) {
	response, err := s.searcher.Search(queryString, category, limit, offset)
	if err != nil {
		s.logger.Error("search failed", "query", queryString, "category", category, "err", err.Error())
		return nil, err
	}

	s.logger.Debug("search completed", "query", queryString, "category", category, "total", response.Total, "took", response.SearchTime)
	return response, nil
}
