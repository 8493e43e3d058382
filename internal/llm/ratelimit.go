package llm

import (
	"math"

	"golang.org/x/time/rate"
)

// newRateLimiter allows requestsPerMinute with a burst of one second's worth.
func newRateLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	perSecond := requestsPerMinute / 60
	burst := int(math.Max(1, math.Ceil(perSecond)))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
