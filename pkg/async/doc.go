// Package async runs a function in the background and hands back a typed
// Future for its result.
//
// The feature gate uses it to bound how long a decision may stay in Loading:
//
//	fut := async.Async(ctx, in, evaluator.Check)
//	res, err := fut.AwaitWithTimeout(10 * time.Second)
//	if errors.Is(err, async.ErrTimeout) {
//		// fail closed
//	}
//
// Awaiting never cancels the running function. Callers that give up should
// cancel the context they passed to Async.
package async
