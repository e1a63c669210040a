package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

const defaultCheckTimeout = 10 * time.Second

// PlanAPI is the subset of the Plan/Access API the evaluator needs.
type PlanAPI interface {
	CurrentPlan(ctx context.Context, token string) (*subscription.Plan, error)
	FeatureAccess(ctx context.Context, token string, id feature.ID) (bool, error)
}

// Observer is notified of every completed check. err is the fetch failure
// that forced a fail-closed result, if any.
type Observer interface {
	AccessChecked(featureID string, res Result, err error)
}

// User is the authenticated caller. Token is forwarded to the Plan API.
type User struct {
	ID    string
	Token string
}

// Evaluator decides whether a user may use a feature. Every fetch failure
// denies access.
type Evaluator struct {
	api       PlanAPI
	timeout   time.Duration
	log       *slog.Logger
	observer  Observer
	coalescer *Coalescer
}

type Option func(*Evaluator)

// WithCheckTimeout bounds every check, including the /plans/current fetch.
func WithCheckTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Evaluator) { e.observer = o }
}

// WithCoalescer shares checks between concurrent callers. Without it every
// Check performs its own round trip.
func WithCoalescer(c *Coalescer) Option {
	return func(e *Evaluator) { e.coalescer = c }
}

// NewEvaluator creates an evaluator backed by api. It panics if api is nil.
func NewEvaluator(api PlanAPI, opts ...Option) *Evaluator {
	if api == nil {
		panic("access: plan api is required")
	}
	e := &Evaluator{
		api:     api,
		timeout: defaultCheckTimeout,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.Component("access"))
	return e
}

// NewFromConfig creates an evaluator with a coalescer sized by cfg.
func NewFromConfig(api PlanAPI, cfg Config, opts ...Option) *Evaluator {
	base := []Option{WithCheckTimeout(cfg.CheckTimeout)}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		base = append(base, WithCoalescer(NewCoalescer(cfg.CacheSize, cfg.CacheTTL)))
	}
	return NewEvaluator(api, append(base, opts...)...)
}

// Evaluate decides access for a user whose current plan is already known.
// A nil featureID asks for premium access in general.
//
// Callers are expected to handle the missing user and the incomplete profile
// before calling; Evaluate still answers both with a denial.
func (e *Evaluator) Evaluate(ctx context.Context, user User, plan subscription.Plan, featureID *feature.ID) Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.evaluate(ctx, user, plan, featureID)
	e.observe(featureID, res, err)
	return res
}

// Check runs the whole pipeline for a gate: fetch the current plan, apply the
// profile short-circuit, then evaluate. Concurrent identical checks are
// shared when a Coalescer is configured.
func (e *Evaluator) Check(ctx context.Context, user User, featureID *feature.ID) Result {
	if user.ID == "" {
		return Denied(ReasonNoSubscription)
	}

	run := func(ctx context.Context) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		res, err := e.check(ctx, user, featureID)
		e.observe(featureID, res, err)
		return res, err
	}

	if e.coalescer == nil {
		res, _ := run(ctx)
		return res
	}

	key := Key{UserID: user.ID}
	if featureID != nil {
		key.Feature = *featureID
	}
	res, err := e.coalescer.Do(ctx, key, run)
	if err != nil && ctx.Err() != nil {
		return Denied(ReasonNoSubscription)
	}
	return res
}

// Invalidate forgets cached results of userID. Subscription sync calls it
// when the user's status changes.
func (e *Evaluator) Invalidate(userID string) {
	if e.coalescer != nil {
		e.coalescer.Invalidate(userID)
	}
}

func (e *Evaluator) check(ctx context.Context, user User, featureID *feature.ID) (Result, error) {
	plan, err := e.api.CurrentPlan(ctx, user.Token)
	if err != nil {
		e.warn(ctx, "current plan fetch failed, denying access", user, featureID, err)
		return Denied(ReasonNoSubscription), err
	}
	return e.evaluate(ctx, user, *plan, featureID)
}

func (e *Evaluator) evaluate(ctx context.Context, user User, plan subscription.Plan, featureID *feature.ID) (Result, error) {
	if user.ID == "" {
		return Denied(ReasonNoSubscription), nil
	}
	if plan.AccessControl.RedirectToEditInfo {
		return Denied(ReasonProfileIncomplete), nil
	}

	if featureID == nil {
		if plan.AccessControl.CanAccessPremiumFeatures {
			return Allowed(), nil
		}
		return Denied(ReasonNoSubscription), nil
	}

	switch *featureID {
	case feature.AdBlocker, feature.VPN, feature.LiveReports, feature.DataRemoval:
		ok, err := e.api.FeatureAccess(ctx, user.Token, *featureID)
		if err != nil {
			e.warn(ctx, "feature access fetch failed, denying access", user, featureID, err)
			return Denied(ReasonNoSubscription), err
		}
		if ok {
			return Allowed(), nil
		}
		return Denied(ReasonFeatureNotIncluded), nil
	default:
		err := errors.Join(ErrUnknownFeature, errors.New(string(*featureID)))
		e.log.ErrorContext(ctx, "access requested for unknown feature",
			logger.UserID(user.ID),
			logger.Feature(string(*featureID)),
		)
		return Denied(ReasonFeatureNotIncluded), err
	}
}

func (e *Evaluator) warn(ctx context.Context, msg string, user User, featureID *feature.ID, err error) {
	e.log.WarnContext(ctx, msg,
		logger.UserID(user.ID),
		logger.Feature(featureName(featureID)),
		logger.Error(err),
	)
}

func (e *Evaluator) observe(featureID *feature.ID, res Result, err error) {
	if e.observer != nil {
		e.observer.AccessChecked(featureName(featureID), res, err)
	}
}

func featureName(id *feature.ID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}
