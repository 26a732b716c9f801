package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serverError logs the real error and answers 500. The raw detail is
// only exposed in development — production clients get a generic line.
func serverError(c *gin.Context, logger *zap.Logger, devMode bool, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	if devMode {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "detail": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
