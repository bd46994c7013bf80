// Package middleware provides per-client rate limiting for the HTTP API.
//
// # Limiters
//
// RateLimiter: in-process token bucket, for a single API replica
//
//	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
//		RequestsPerWindow: 600,
//		WindowDuration:    time.Minute,
//		BurstSize:         60,
//	})
//	limiter.StartCleanup(ctx)
//
// DistributedRateLimiter: fixed window counters in Redis, shared by every replica
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, config, "")
//
// # Middleware
//
//	handler = middleware.RateLimit(limiter, logger)(handler)
//
// Clients are keyed by ClientIP. Requests over the limit get 429 with a
// Retry-After header and a RATE_LIMITED error code. When the limiter itself
// fails the request is let through.
//
// Default: 600 req/min with a burst of 60.
package middleware
