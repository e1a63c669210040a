// Package redis connects to Redis with bounded retries and exposes a
// readiness probe.
//
// The service uses Redis only for pub/sub: billing webhooks publish a nudge
// and every instance's subscription sync manager listens for it.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	checks = append(checks, redis.Healthcheck(client))
package redis
