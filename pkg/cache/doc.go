// Package cache provides a generic, thread-safe LRU cache with per-entry
// expiry.
//
// TTLCache bounds memory by capacity and staleness by TTL. The access
// evaluator uses it to keep successful feature checks for a few seconds so
// that sibling gates on one page do not refetch the same answer:
//
//	results := cache.NewTTLCache[key, access.Result](1024, 5*time.Second)
//	results.Put(k, res)
//	res, ok := results.Get(k)
//
// RemoveFunc drops every entry matching a predicate, which is how all cached
// results of one user are invalidated after a subscription change.
//
// All operations are O(1) except RemoveFunc, which scans the cache.
package cache
