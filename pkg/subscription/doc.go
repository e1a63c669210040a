// Package subscription models the subscription state that gates premium features.
//
// The identity provider owns the canonical record and exposes it as a metadata bag on the
// user (subscriptionStatus, stripeCustomerId, stripeSubscriptionId, subscriptionPeriodEnd,
// cancelAtPeriodEnd). FromMetadata turns that bag into a Record, normalising provider
// spellings such as "active" and "canceled".
//
// # Caching
//
// Each authenticated session keeps one Cache. The session's syncer is the only writer;
// gates and the access evaluator read snapshots:
//
//	cache := subscription.NewCache()
//	rec, err := subscription.FromMetadata(user.Metadata)
//	if err == nil {
//		cache.Store(rec, time.Now())
//	}
//	snap := cache.Load()
//	if snap.Known && snap.Record.IsPremium() {
//		// ...
//	}
//
// # Plan API
//
// Plan and AccessControl mirror the Plan API response for /plans/current. The
// RedirectToEditInfo flag takes precedence over every feature decision.
package subscription
