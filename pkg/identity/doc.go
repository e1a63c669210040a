// Package identity verifies session tokens issued by the external identity
// provider and fetches the user record whose public metadata carries the
// subscription state.
//
// Token issuance is out of scope; tokens arrive as HS256 JWTs whose subject
// is the user id and whose "sid" claim is the session id.
//
//	v, _ := identity.NewVerifier(cfg.SigningSecret, cfg.Issuer)
//	r.Use(identity.Middleware(v, log, identity.BearerToken, identity.CookieToken(cfg.CookieName)))
//
//	client, _ := identity.NewClient(cfg.APIURL, cfg.APIKey)
//	user, err := client.Reload(ctx, userID)
package identity
