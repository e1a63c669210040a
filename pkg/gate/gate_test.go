package gate_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/gate"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

type checkerFunc func(ctx context.Context, user access.User, id *feature.ID) access.Result

func (f checkerFunc) Check(ctx context.Context, user access.User, id *feature.ID) access.Result {
	return f(ctx, user, id)
}

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

var user = access.User{ID: "user_1", Token: "tok"}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func wait(t *testing.T, g *gate.Gate) gate.Decision {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := g.Wait(ctx)
	require.NoError(t, err)
	return d
}

func TestNew_PanicsWithoutChecker(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { gate.New(nil) })
}

func TestGate_NoUser(t *testing.T) {
	t.Parallel()

	api := &MockPlanAPI{}
	g := gate.New(access.NewEvaluator(api), gate.WithView(gate.View{SignInURL: "/sign-in"}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{Feature: feature.Ptr(feature.VPN)})

	assert.Equal(t, gate.SignInRequired, g.Decision())
	html := render(t, g.Component())
	assert.Contains(t, html, `href="/sign-in"`)
	assert.Contains(t, html, `data-decision="sign-in-required"`)
	api.AssertNotCalled(t, "CurrentPlan", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "FeatureAccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestGate_ProfileIncompleteTakesPrecedence(t *testing.T) {
	t.Parallel()

	api := &MockPlanAPI{}
	api.On("CurrentPlan", mock.Anything, "tok").Return(&subscription.Plan{
		Plan: "premium",
		AccessControl: subscription.AccessControl{
			CanAccessPremiumFeatures: true,
			RedirectToEditInfo:       true,
		},
	}, nil)

	g := gate.New(access.NewEvaluator(api), gate.WithView(gate.View{EditInfoURL: "/edit-info"}))
	defer g.Close()

	for _, id := range []*feature.ID{nil, feature.Ptr(feature.DataRemoval)} {
		g.Update(context.Background(), gate.Inputs{User: user, Feature: id})
		assert.Equal(t, gate.ProfileIncomplete, wait(t, g))
		assert.Contains(t, render(t, g.Component()), `href="/edit-info"`)
	}
	api.AssertNotCalled(t, "FeatureAccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestGate_TrialUserWithoutVPN(t *testing.T) {
	t.Parallel()

	api := &MockPlanAPI{}
	api.On("CurrentPlan", mock.Anything, "tok").Return(&subscription.Plan{
		Plan:          "trial",
		AccessControl: subscription.AccessControl{CanAccessPremiumFeatures: true},
	}, nil)
	api.On("FeatureAccess", mock.Anything, "tok", feature.VPN).Return(false, nil)

	g := gate.New(access.NewEvaluator(api), gate.WithView(gate.View{
		CheckoutURL: "/api/checkout",
		PriceID:     "price_premium",
	}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user, Feature: feature.Ptr(feature.VPN)})
	require.Equal(t, gate.UpgradeRequired, wait(t, g))
	assert.Equal(t, access.ReasonFeatureNotIncluded, g.Result().Reason)

	html := render(t, g.Component())
	assert.Contains(t, html, feature.Benefits(feature.VPN).Title)
	for _, b := range feature.Benefits(feature.VPN).Benefits {
		assert.Contains(t, html, templ.EscapeString(b))
	}
	assert.Contains(t, html, `name="priceId" value="price_premium"`)
	assert.Contains(t, html, `action="/api/checkout"`)
	api.AssertExpectations(t)
}

func TestGate_Granted(t *testing.T) {
	t.Parallel()

	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>secret dashboard</p>")
		return err
	})
	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Allowed()
	}), gate.WithView(gate.View{Content: content}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user})
	require.Equal(t, gate.Granted, wait(t, g))
	assert.Equal(t, "<p>secret dashboard</p>", render(t, g.Component()))
}

func TestGate_GrantedWithoutContent(t *testing.T) {
	t.Parallel()

	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Allowed()
	}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user})
	require.Equal(t, gate.Granted, wait(t, g))
	g.Resize(375)

	html := render(t, g.Component())
	assert.Contains(t, html, `id="access-gate"`)
	assert.Contains(t, html, `data-decision="granted"`)
	assert.Contains(t, html, `class="gate gate--compact"`)
	assert.NotContains(t, html, "Upgrade")
}

func TestGate_Fallback(t *testing.T) {
	t.Parallel()

	fallback := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "custom upsell")
		return err
	})
	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Denied(access.ReasonNoSubscription)
	}), gate.WithView(gate.View{Fallback: fallback}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user})
	require.Equal(t, gate.UpgradeRequired, wait(t, g))
	assert.Equal(t, "custom upsell", render(t, g.Component()))
}

func TestGate_GenericPremiumCopy(t *testing.T) {
	t.Parallel()

	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Denied(access.ReasonNoSubscription)
	}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user})
	require.Equal(t, gate.UpgradeRequired, wait(t, g))
	assert.Contains(t, render(t, g.Component()), feature.Premium.Title)
}

func TestGate_LastIssuedCheckWins(t *testing.T) {
	t.Parallel()

	releaseVPN := make(chan struct{})
	vpnStarted := make(chan struct{})
	var vpnCancelled atomic.Bool

	g := gate.New(checkerFunc(func(ctx context.Context, _ access.User, id *feature.ID) access.Result {
		if *id == feature.VPN {
			close(vpnStarted)
			select {
			case <-releaseVPN:
			case <-ctx.Done():
				vpnCancelled.Store(true)
				<-releaseVPN
			}
			return access.Allowed()
		}
		return access.Denied(access.ReasonFeatureNotIncluded)
	}))
	defer g.Close()

	ctx := context.Background()
	g.Update(ctx, gate.Inputs{User: user, Feature: feature.Ptr(feature.VPN)})
	<-vpnStarted
	assert.Equal(t, gate.Loading, g.Decision())

	g.Update(ctx, gate.Inputs{User: user, Feature: feature.Ptr(feature.AdBlocker)})
	require.Equal(t, gate.UpgradeRequired, wait(t, g))

	close(releaseVPN)
	assert.Eventually(t, vpnCancelled.Load, time.Second, 5*time.Millisecond)

	// the late VPN grant must not overwrite the ad blocker denial
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, gate.UpgradeRequired, g.Decision())
	assert.Equal(t, feature.AdBlocker, *g.Inputs().Feature)
}

func TestGate_LoadingTimeoutFailsClosed(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})
	g := gate.New(checkerFunc(func(ctx context.Context, _ access.User, _ *feature.ID) access.Result {
		<-ctx.Done()
		close(cancelled)
		return access.Allowed()
	}), gate.WithLoadingTimeout(30*time.Millisecond))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user, Feature: feature.Ptr(feature.LiveReports)})
	assert.Equal(t, gate.UpgradeRequired, wait(t, g))
	assert.False(t, g.Result().HasAccess)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed out check was not cancelled")
	}
}

func TestGate_Observer(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []gate.Decision
	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Allowed()
	}), gate.WithObserver(func(_ gate.Inputs, d gate.Decision) {
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
	}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{})
	g.Update(context.Background(), gate.Inputs{User: user})
	wait(t, g)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []gate.Decision{gate.SignInRequired, gate.Granted}, got)
}

func TestGate_Resize(t *testing.T) {
	t.Parallel()

	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Denied(access.ReasonNoSubscription)
	}))
	defer g.Close()

	g.Update(context.Background(), gate.Inputs{User: user})
	require.Equal(t, gate.UpgradeRequired, wait(t, g))

	assert.Equal(t, gate.ChromeCompact, g.Resize(375))
	assert.Contains(t, render(t, g.Component()), "gate--compact")
	assert.Equal(t, gate.UpgradeRequired, g.Decision())

	assert.Equal(t, gate.ChromeFull, g.Resize(1280))
	assert.Contains(t, render(t, g.Component()), "gate--full")
	assert.Equal(t, gate.UpgradeRequired, g.Decision())
}

func TestGate_CloseUnblocksWait(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	g := gate.New(checkerFunc(func(ctx context.Context, _ access.User, _ *feature.ID) access.Result {
		<-block
		return access.Allowed()
	}))

	g.Update(context.Background(), gate.Inputs{User: user})
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Close()
	}()

	d, err := g.Wait(context.Background())
	assert.ErrorIs(t, err, gate.ErrClosed)
	assert.Equal(t, gate.Loading, d)
}

func TestGate_LoadingPlaceholder(t *testing.T) {
	t.Parallel()

	g := gate.New(checkerFunc(func(context.Context, access.User, *feature.ID) access.Result {
		return access.Allowed()
	}))
	defer g.Close()

	assert.Equal(t, gate.Loading, g.Decision())
	assert.Contains(t, render(t, g.Component()), `aria-busy="true"`)
}

func TestChromeFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, gate.ChromeCompact, gate.ChromeFor(gate.Breakpoint-1))
	assert.Equal(t, gate.ChromeFull, gate.ChromeFor(gate.Breakpoint))
}
