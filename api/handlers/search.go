package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/services/search"
	"github.com/meghashyamc/docsearch/validation"
)

const (
	defaultResultsPerPage = 20

	HeaderPaginationTotalCount = "X-Pagination-Total-Count"
)

type SearchRequest struct {
	Query    string `form:"query" json:"query" validate:"required,valid_query,min=1,max=1000"`
	Category string `form:"category" json:"category" validate:"omitempty,valid_category"`
	PerPage  int    `form:"per_page" json:"per_page" validate:"min=0,max=100"`
	Page     int    `form:"page" json:"page" validate:"min=0,max=10000"`
}

func (r *SearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type SearchResponse struct {
	Results     []searchdb.Result `json:"results"`
	PageDetails Pagination        `json:"page_details"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, searchdb searchdb.DB, validator *validation.Validator) {
	service := search.New(logger, searchdb)
	router.GET("/search", handleSearch(service, logger, validator))

}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			abortWithErrors(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			abortWithErrors(c, http.StatusNotAcceptable, err.Error())
			return
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		results, err := service.Search(request.Query, request.Category, limit, offset)
		if err != nil {
			logger.Error("search failed", "err", err.Error())
			abortWithErrors(c, http.StatusInternalServerError, err.Error())
			return
		}

		searchResponse := SearchResponse{
			Results: results.Results,
			PageDetails: calculatePagination(
				int(results.Total),
				limit,
				offset),
		}

		c.Header(HeaderPaginationTotalCount, strconv.FormatUint(results.Total, 10))
		writeResponse(c, searchResponse, http.StatusOK, nil)
	}
}
