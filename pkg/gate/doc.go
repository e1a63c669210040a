// Package gate decides what a premium view shows and renders it.
//
// A Gate moves from Loading to exactly one of SignInRequired,
// ProfileIncomplete, UpgradeRequired or Granted for every set of inputs.
// Calling Update again returns it to Loading and starts a new check; results
// of superseded checks are discarded, so the decision always reflects the
// most recently issued check.
//
// Basic usage:
//
//	g := gate.New(evaluator,
//		gate.WithView(gate.View{
//			SignInURL:   "/sign-in",
//			EditInfoURL: "/edit-info",
//			CheckoutURL: "/api/checkout",
//			PriceID:     "price_premium",
//			Content:     dashboard,
//		}),
//	)
//	defer g.Close()
//
//	g.Update(ctx, gate.Inputs{User: user, Feature: feature.Ptr(feature.VPN)})
//	if _, err := g.Wait(ctx); err != nil {
//		return err
//	}
//	return g.Component().Render(ctx, w)
//
// A check that takes longer than the loading timeout (10s by default)
// resolves the gate to UpgradeRequired.
//
// Resize only switches between compact and full chrome at Breakpoint. It never
// changes the decision.
package gate
