package access_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

type MockPlanAPI struct {
	mock.Mock
}

func (m *MockPlanAPI) CurrentPlan(ctx context.Context, token string) (*subscription.Plan, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Plan), args.Error(1)
}

func (m *MockPlanAPI) FeatureAccess(ctx context.Context, token string, id feature.ID) (bool, error) {
	args := m.Called(ctx, token, id)
	return args.Bool(0), args.Error(1)
}

type recordingObserver struct {
	features []string
	results  []access.Result
	errs     []error
}

func (o *recordingObserver) AccessChecked(featureID string, res access.Result, err error) {
	o.features = append(o.features, featureID)
	o.results = append(o.results, res)
	o.errs = append(o.errs, err)
}

func plan(premium, editInfo bool) *subscription.Plan {
	return &subscription.Plan{
		Plan: "test",
		AccessControl: subscription.AccessControl{
			CanAccessPremiumFeatures: premium,
			RedirectToEditInfo:       editInfo,
		},
	}
}
