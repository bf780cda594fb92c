package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docsearch/api/handlers"
	"github.com/meghashyamc/docsearch/db/searchdb"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/services/index"
	"github.com/meghashyamc/docsearch/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, searchDB searchdb.DB, indexService *index.Service, validator *validation.Validator, variable string) {
	router.GET("/health", health(searchDB))

	handlers.SetupIndex(router, logger, indexService, validator)
	handlers.SetupSearch(router, logger, searchDB, validator)
	handlers.SetupExport(router, logger, indexService, validator, variable)
}

// health reports OK along with the number of indexed records.
func health(searchDB searchdb.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := searchDB.GetDocCount()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "records": count})
	}
}

func newRouter(logger logger.Logger) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	return router
}
