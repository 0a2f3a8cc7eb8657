// Package middleware provides HTTP middleware for the admin API:
// bearer token authentication and rate limiting.
//
// # Admin Authentication
//
//	auth := middleware.NewAdminAuth(cfg.AdminToken)
//	router.Use(auth.Handler)
//
// The acting user for audit attribution comes from the X-Acting-User
// header and is read back with middleware.Actor(r).
//
// # Rate Limiting
//
// In-memory, per instance:
//
//	rl := middleware.NewRateLimitMiddleware(nil)
//	router.Use(rl.Handler)
//
// Redis-backed, shared across instances:
//
//	drl := middleware.NewDistributedRateLimiter(redisClient, nil, "")
//	router.Use(drl.Handler)
package middleware
