// Package metrics exposes the service's Prometheus metrics.
//
// A Collector owns its registry and is wired in as the observer of the
// components it measures:
//
//	m := metrics.New(metrics.WithSessionGauge(func() float64 { return float64(manager.Len()) }))
//	evaluator := access.NewEvaluator(api, access.WithObserver(m))
//	manager := subsync.NewManager(idp, subsync.WithPollObserver(m), subsync.WithHook(m.ChangeObserved))
//	router.Handle("/metrics", m.Handler())
package metrics
