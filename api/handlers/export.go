package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/meghashyamc/docsearch/services/index"
	"github.com/meghashyamc/docsearch/validation"
)

const (
	exportFormatJS   = "js"
	exportFormatJSON = "json"

	contentTypeJavaScript = "application/javascript; charset=utf-8"
	contentTypeJSON       = "application/json; charset=utf-8"
)

type ExportRequest struct {
	Source string `form:"source" json:"source"`
	Format string `form:"format" json:"format" validate:"omitempty,oneof=js json"`
}

// SetupExport serves stored payloads back in the shape search widgets load.
func SetupExport(router *gin.Engine, logger logger.Logger, service *index.Service, validator *validation.Validator, variable string) {
	router.GET("/export", handleExport(service, logger, validator, variable))
}

func handleExport(service *index.Service, logger logger.Logger, validator *validation.Validator, variable string) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ExportRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from export request", "err", err.Error())
			abortWithErrors(c, http.StatusUnprocessableEntity, "failed to extract request query parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate export request", "err", err.Error())
			abortWithErrors(c, http.StatusNotAcceptable, err.Error())
			return
		}

		if request.Format == "" {
			request.Format = exportFormatJS
		}

		idx, err := service.Export(request.Source)
		if err != nil {
			statusCode := http.StatusInternalServerError
			if errors.Is(err, index.ErrSourceNotFound) {
				statusCode = http.StatusNotFound
			}
			logger.Warn("could not export search index", "source", request.Source, "err", err.Error())
			abortWithErrors(c, statusCode, err.Error())
			return
		}

		var buf bytes.Buffer
		contentType := contentTypeJavaScript
		if request.Format == exportFormatJSON {
			contentType = contentTypeJSON
			err = searchindex.EncodeJSON(&buf, idx)
		} else {
			err = searchindex.EncodeJS(&buf, variable, idx)
		}
		if err != nil {
			logger.Error("could not encode search index", "format", request.Format, "err", err.Error())
			abortWithErrors(c, http.StatusInternalServerError, err.Error())
			return
		}

		c.Data(http.StatusOK, contentType, buf.Bytes())
	}
}
