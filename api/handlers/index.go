package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docsearch/db/kvdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/services/index"
	"github.com/meghashyamc/docsearch/validation"
)

type IndexRequest struct {
	Path string `json:"path" validate:"valid_path"`
}

type IndexResponse struct {
	ID string `json:"id"`
}

type IndexStatusResponse struct {
	ID string `json:"id"`
	kvdb.RequestStatus
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service *index.Service, validator *validation.Validator) {
	router.POST("/index", handleIndex(service, logger, validator))
	router.GET("/index/:id", handleIndexStatus(service, logger))
}

func handleIndex(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from the index request body", "err", err.Error())
			abortWithErrors(c, http.StatusUnprocessableEntity, "failed to extract request body parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate request", "err", err.Error())
			abortWithErrors(c, http.StatusNotAcceptable, err.Error())
			return
		}

		requestID, err := service.Build(request.Path)
		if err != nil {
			statusCode := http.StatusInternalServerError
			if errors.Is(err, index.ErrIndexingInProgress) {
				statusCode = http.StatusConflict
			}
			logger.Warn("could not create index", "err", err.Error())
			abortWithErrors(c, statusCode, err.Error())
			return
		}

		writeResponse(c, IndexResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

func handleIndexStatus(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("id")

		status, err := service.GetStatus(requestID)
		if err != nil {
			statusCode := http.StatusInternalServerError
			if errors.Is(err, index.ErrRequestNotFound) {
				statusCode = http.StatusNotFound
			}
			logger.Warn("could not get index status", "request_id", requestID, "err", err.Error())
			abortWithErrors(c, statusCode, err.Error())
			return
		}

		response := IndexStatusResponse{ID: requestID, RequestStatus: *status}
		switch status.Progress {
		case index.ProgressStatusComplete:
			writeResponse(c, response, http.StatusOK, nil)
		case index.ProgressStatusFailed:
			writeResponse(c, response, http.StatusInternalServerError, []string{status.Error})
		default:
			writeResponse(c, response, http.StatusAccepted, nil)
		}
	}
}
