package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/response"
)

// RateLimit limits requests per (clientIP, path) within a fixed window.
// It is an in-memory limiter scoped to a single process; per-identity OTP
// throttling is enforced separately against the backing store.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type counter struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu        sync.Mutex
		data      = make(map[string]*counter)
		nextSweep time.Time
	)

	// drop stale counters at most once per window, piggybacking on request
	// handling so no background goroutine is needed
	sweep := func(now time.Time) {
		if now.Before(nextSweep) {
			return
		}
		nextSweep = now.Add(window)
		for k, v := range data {
			if now.After(v.windowEnd) {
				delete(data, k)
			}
		}
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		sweep(now)
		ct, ok := data[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &counter{windowEnd: now.Add(window)}
			data[key] = ct
		}
		ct.count++
		count := ct.count
		resetIn := time.Until(ct.windowEnd)
		mu.Unlock()

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			seconds := int(resetIn.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			response.Error(c, errors.NewRateLimit("Too many requests. Please try again later", seconds))
			c.Abort()
			return
		}

		c.Next()
	}
}
