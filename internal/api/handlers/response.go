package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func JSONOK(c *gin.Context, v any) {
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.JSON(http.StatusOK, v)
}
func JSONBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
func JSONUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
}
func JSONNotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}
func JSONServerErr(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// serverError logs err against the request and answers 500 with msg.
func serverError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	_ = c.Error(err)
	logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	JSONServerErr(c, msg)
}

func redirect(c *gin.Context, code int, location string) {
	c.Redirect(code, location)
	c.Abort()
}
