// Package broadcast provides typed, non-blocking one-to-many fan-out.
//
// Subscription sync publishes every observed status change through a
// MemoryBroadcaster; the SSE endpoint subscribes with a filter for the
// caller's user:
//
//	changes := broadcast.NewMemoryBroadcaster[subsync.Change](16)
//	sub := changes.Subscribe(r.Context(), func(c subsync.Change) bool {
//		return c.UserID == userID
//	})
//	defer sub.Close()
//	for c := range sub.Receive() {
//		...
//	}
//
// Broadcast never blocks. A subscriber with a full buffer misses the message
// and the miss is reported in the returned count.
package broadcast
