// Package access decides whether an authenticated user may use a premium
// feature.
//
// The decision comes from the Plan/Access API. A nil feature asks the coarse
// question answered by /plans/current; a concrete feature is looked up per
// feature because promotions may unlock one feature without premium.
//
// Every failure to fetch an answer (transport error, non-2xx status, bad
// body or timeout) denies access. The evaluator never grants on error.
//
//	ev := access.NewEvaluator(planClient,
//		access.WithCheckTimeout(10*time.Second),
//		access.WithCoalescer(access.NewCoalescer(1024, 5*time.Second)),
//	)
//	res := ev.Check(ctx, access.User{ID: uid, Token: tok}, feature.Ptr(feature.VPN))
//
// The Coalescer lets sibling gates on one page share a single in-flight
// request per user and feature, and keeps successful answers for a few
// seconds. Invalidate clears a user's answers after a subscription change.
package access
