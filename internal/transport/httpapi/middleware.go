package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimit throttles mutating requests with a shared token bucket.
// Disabled when rate_per_sec is 0.
func (s *Server) rateLimit() gin.HandlerFunc {
	rps := s.cfg.RatePerSec
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := s.cfg.Burst
	if burst <= 0 {
		burst = rps
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
