// Package httpserver runs an http.Handler until its context is cancelled and
// then shuts down gracefully.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Run returns nil after a clean shutdown, ErrStart when the listener fails and
// ErrShutdown when draining exceeds the shutdown timeout.
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz probes.
package httpserver
