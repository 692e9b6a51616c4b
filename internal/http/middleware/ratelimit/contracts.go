package ratelimit

// Limiter decides whether the caller behind key may issue another request.
// Keys are "partner:<id>" for identified partners and "ip:<addr>" otherwise.
type Limiter interface {
	Allow(key string) bool
}

// NopLimiter admits every request; it stands in when rate limiting is disabled.
type NopLimiter struct{}

// Allow always returns true
func (NopLimiter) Allow(string) bool { return true }
