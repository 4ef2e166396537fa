package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// backupIDRule validates YYYYMMDD backup identifiers. They end up as a
// script argument and inside container names, so only eight plain digits
// forming a real calendar date are accepted.
const backupIDRule = "required,len=8,number,datetime=20060102"

func newValidator() *validator.Validate {
	return validator.New()
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		event := s.logger.Info()
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			event = s.logger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// backupIDParam returns the validated :id path parameter, or responds 400 and returns false
func (s *Server) backupIDParam(c *gin.Context) (string, bool) {
	backupID := c.Param("id")
	if err := s.validator.Var(backupID, backupIDRule); err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid backup identifier (expected YYYYMMDD)")
		return "", false
	}
	return backupID, true
}
