// Package logger is a thin layer over log/slog that adds functional options,
// per-environment defaults, attribute helpers and injection of values stored
// in context.Context.
//
// New builds a text or JSON slog.Handler and wraps it in a context handler
// which runs every registered ContextExtractor before delegating. Request ids
// and session ids reach the log this way without being threaded through calls.
//
// Attribute helpers (Error, UserID, Feature, Decision, Transition, Category)
// keep key names consistent across the gate, the access evaluator and the
// subscription sync loop.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "accessgate"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "gate resolved",
//	    logger.Feature(string(feature.VPN)),
//	    logger.Decision("granted"),
//	)
//
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
