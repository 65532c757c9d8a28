package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/auth"
	"github.com/dmitrijs2005/showroom/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	ctxShareClaims = "shareClaims"
	ctxUserID      = "userID"
)

// RequestLogger writes one line per request through log.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(h, common.BearerPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ShareAuth admits requests carrying a share token issued for the :code
// path parameter.
func (h *Handler) ShareAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			h.abortWithError(c, common.ErrInvalidToken)
			return
		}

		claims, err := auth.ValidateShareToken(token, secret, c.Param("code"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		c.Set(ctxShareClaims, claims)
		c.Next()
	}
}

// SessionAuth admits requests carrying a primary session token.
func (h *Handler) SessionAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			h.abortWithError(c, common.ErrInvalidToken)
			return
		}

		userID, err := auth.ValidateSessionToken(token, secret)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// VerifyThrottle is a coarse token bucket per client IP in front of the
// verify endpoint. Limiters of idle clients age out of the LRU.
func VerifyThrottle(interval time.Duration, burst, size int, ttl time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := expirable.NewLRU[string, *rate.Limiter](size, nil, ttl)

	getLimiter := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		limiter, ok := limiters.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(rate.Every(interval), burst)
			limiters.Add(ip, limiter)
		}
		return limiter
	}

	return func(c *gin.Context) {
		limiter := getLimiter(c.ClientIP())

		reservation := limiter.Reserve()
		if !reservation.OK() {
			metrics.VerifyThrottled.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "slow down", Code: "throttled"})
			return
		}

		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			metrics.VerifyThrottled.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "slow down", Code: "throttled"})
			return
		}

		c.Next()
	}
}
