package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// requireCronSecret guards the distribution trigger with a shared bearer
// secret so external cron services can invoke it without a user token.
func (s *Server) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}

		if s.config.CronSecret == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.config.CronSecret)) != 1 {
			errorResponse(c, http.StatusUnauthorized, "invalid cron secret")
			c.Abort()
			return
		}
		c.Next()
	}
}

// handleDistributeProfits handles GET|POST /api/cron/distribute-profits.
// Re-invocation within the same period is safe: already-credited plans are
// skipped by the period-key constraint and reported in the summary.
func (s *Server) handleDistributeProfits(c *gin.Context) {
	summary, err := s.distributor.RunCycleNow(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("distribution cycle failed")
		errorResponse(c, http.StatusInternalServerError, "distribution cycle failed")
		return
	}

	if summary.UsersUpdated > 0 {
		s.invalidateAllUserCache(c)
	}

	successResponse(c, summary)
}
