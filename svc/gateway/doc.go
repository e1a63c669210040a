// Package gateway serves the access gate over HTTP.
//
// It mounts the gate panels (/gate, /gate/{feature}), the JSON access API, the
// subscription endpoints backed by subsync, the checkout and cancellation
// flows backed by billing, and the billing webhook. Every signed-in request
// gets its session's syncer attached, bounded by the token expiry, before the
// handler runs. With WithRateLimiter, sync, checkout and cancel are throttled
// per user. Cookie-authenticated API writes must come from the gateway's own
// origin or one passed to WithTrustedOrigins.
//
// Panels are plain HTML for regular requests and datastar element patches
// targeting #access-gate for datastar requests:
//
//	gw := gateway.New(evaluator, manager, billingSvc, verifier,
//		gateway.WithMetrics(collector),
//		gateway.WithHistory(store),
//	)
//	srv.Run(ctx, gw.Router())
package gateway
