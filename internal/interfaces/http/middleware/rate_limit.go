package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/interfaces/http/response"
	"hostel-hub.backend/pkg/logger"
	"hostel-hub.backend/pkg/redis"
)

const loginRateLimitKeyPrefix = "ratelimit:login:"

var incrWindow = redis.IncrWindow

// LoginRateLimit allows limit requests per client IP in each window. It lets
// everything through when limit is not positive or Redis cannot be reached.
func LoginRateLimit(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		count, err := incrWindow(ctx, loginRateLimitKeyPrefix+c.ClientIP(), window)
		if err != nil {
			if !errors.Is(err, redis.ErrUnavailable) {
				logger.Warn(ctx, "Login rate limit check failed, allowing request", zap.Error(err))
			}
			c.Next()
			return
		}

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, domainerrors.TooManyRequests("Too many login attempts, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
