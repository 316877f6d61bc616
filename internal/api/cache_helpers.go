package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bsc-invest-platform/internal/cache"
)

// cachedJSON tries the cache first; on miss it calls load, stores the result
// and returns it. Any cache failure falls through to the loader.
func cachedJSON[T any](c *gin.Context, cs *cache.CacheService, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var out T
	if cs != nil {
		if err := cs.GetJSON(c.Request.Context(), key, &out); err == nil {
			return out, nil
		}
	}

	out, err := load()
	if err != nil {
		return out, err
	}

	if cs != nil {
		// Best effort; a failed write just means the next read hits the DB.
		_ = cs.SetJSON(c.Request.Context(), key, out, ttl)
	}
	return out, nil
}

func (s *Server) invalidateUserCache(c *gin.Context, userID uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	s.cacheService.InvalidateUser(c.Request.Context(), userID.String())
}

// invalidateAllUserCache drops every user aggregate. Used after admin
// approval, where the affected user is not known to the handler.
func (s *Server) invalidateAllUserCache(c *gin.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(c.Request.Context(), "user:*"); err != nil {
		s.logger.Debug().Err(err).Msg("cache invalidation skipped")
	}
}

// paginationParams reads limit/offset query params with sane bounds.
func paginationParams(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
