// Package subsync keeps each session's subscription record in step with the
// identity provider.
//
// A Syncer polls the provider (every 30 seconds by default), compares the
// record's status with the last one it saw and, when it differs, stores the
// new record in the session's subscription.Cache and reports a Change. The
// change is classified for the user-facing notification (see Classify) and
// flagged when dependent page data must be reloaded (see ReloadRequired).
// A failed poll is logged and skipped; it never clears the cache. A premium
// record without a future period end or grace period is rejected the same
// way and reported as ErrInvalidRecord.
//
// The Manager owns the syncers of all sessions:
//
//	m := subsync.NewManager(identityClient,
//		subsync.WithLogger(log),
//		subsync.WithHook(func(ctx context.Context, c subsync.Change) {
//			evaluator.Invalidate(c.UserID)
//		}),
//	)
//	if err := m.Initialize(ctx); err != nil {
//		return err
//	}
//	defer m.Shutdown()
//
//	s, err := m.Attach(ctx, sessionID, userID, subsync.WithExpiry(tokenExpiry))
//	changed, err := s.CheckNow(ctx)
//	m.Detach(sessionID) // sign-out
//
// A session is also detached once its token expires or after it has seen no
// request for the idle timeout (15 minutes by default). Long-lived requests
// such as event streams call Hold to keep their session from going idle.
//
// Billing webhooks publish a Nudge through Publisher; a RedisNudger turns it
// into an immediate check on every session of that user. Polling continues
// as the fallback.
package subsync
