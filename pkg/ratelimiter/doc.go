// Package ratelimiter throttles user actions that hit upstream services,
// such as manual subscription checks and checkout creation.
//
// A Bucket applies one token bucket Config to many keys. Buckets live in a
// MemoryStore for a single instance or in a RedisStore shared by replicas:
//
//	bucket, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(rdb), cfg)
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(bucket, keyFn, log)).Post("/api/subscription/sync", h)
//
// Rejected requests get 429 with X-RateLimit-* and Retry-After headers.
// Store failures let requests through.
package ratelimiter
