package billing

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// Nudger asks running sessions of a user to re-check their subscription.
// *subsync.Publisher implements it.
type Nudger interface {
	Nudge(ctx context.Context, userID string) error
}

// Observer is told about every checkout session attempt.
type Observer interface {
	CheckoutCreated(err error)
}

// Service runs the upgrade and cancellation flows on top of a Provider.
type Service struct {
	provider Provider
	cfg      Config
	nudger   Nudger
	observer Observer
	log      *slog.Logger
}

type Option func(*Service)

func WithNudger(n Nudger) Option {
	return func(s *Service) { s.nudger = n }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a billing service. It panics if provider is nil.
func NewService(provider Provider, cfg Config, opts ...Option) *Service {
	if provider == nil {
		panic("billing: provider is required")
	}
	s := &Service{
		provider: provider,
		cfg:      cfg,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("billing"))
	return s
}

// DashboardURL is where every checkout return ends up.
func (s *Service) DashboardURL() string {
	if s.cfg.DashboardURL == "" {
		return "/"
	}
	return s.cfg.DashboardURL
}

// Checkout creates a checkout session. Unset request fields fall back to the
// configured price, URLs and trial length. Provider failures are returned
// wrapped in ErrCheckoutFailed and are not retried.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		req.PriceID = s.cfg.PriceID
	}
	if req.SuccessURL == "" {
		req.SuccessURL = s.cfg.SuccessURL
	}
	if req.CancelURL == "" {
		req.CancelURL = s.cfg.CancelURL
	}
	if req.TrialPeriodDays == 0 {
		req.TrialPeriodDays = s.cfg.TrialPeriodDays
	}

	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if s.observer != nil {
		s.observer.CheckoutCreated(err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "checkout session creation failed",
			logger.UserID(req.UserID),
			slog.String("price_id", req.PriceID),
			logger.Error(err),
		)
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.UserID(req.UserID),
		slog.String("price_id", req.PriceID),
		slog.String("checkout_session_id", session.ID),
	)
	return session, nil
}

// Cancel schedules the user's subscription to end at period end and nudges
// the user's sessions to pick up the change.
func (s *Service) Cancel(ctx context.Context, userID, subscriptionRef string) error {
	if err := s.provider.CancelAtPeriodEnd(ctx, subscriptionRef); err != nil {
		s.log.ErrorContext(ctx, "subscription cancellation failed", logger.UserID(userID), logger.Error(err))
		return err
	}
	s.log.InfoContext(ctx, "subscription set to cancel at period end", logger.UserID(userID))
	s.nudge(ctx, userID)
	return nil
}

// HandleWebhook verifies a provider webhook and nudges the affected user.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	ev, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		s.log.WarnContext(ctx, "rejected billing webhook", logger.Error(err))
		return nil, err
	}

	s.log.InfoContext(ctx, "billing webhook received",
		slog.String("event", ev.ProviderEvent),
		logger.UserID(ev.UserID),
	)
	if ev.Type.AffectsSubscription() && ev.UserID != "" {
		s.nudge(ctx, ev.UserID)
	}
	return ev, nil
}

// Confirm runs ConfirmCheckout with the configured timeout and interval.
func (s *Service) Confirm(ctx context.Context, checker Checker, sessionID string) Confirmation {
	res := ConfirmCheckout(ctx, checker, sessionID, s.cfg.ConfirmTimeout, s.cfg.ConfirmInterval)
	s.log.InfoContext(ctx, "checkout return confirmed",
		slog.String("checkout_session_id", sessionID),
		slog.Bool("changed", res.Changed),
		slog.Int("attempts", res.Attempts),
		logger.Error(res.Err),
	)
	return res
}

func (s *Service) nudge(ctx context.Context, userID string) {
	if s.nudger == nil || userID == "" {
		return
	}
	if err := s.nudger.Nudge(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "failed to nudge subscription sync", logger.UserID(userID), logger.Error(err))
	}
}
