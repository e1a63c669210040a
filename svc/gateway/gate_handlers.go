package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/gate"
	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// featureParam parses the optional {feature} route parameter. A missing
// parameter asks for premium access in general.
func featureParam(r *http.Request) (*feature.ID, error) {
	raw := chi.URLParam(r, "feature")
	if raw == "" {
		return nil, nil
	}
	id, err := feature.Parse(raw)
	if err != nil {
		return nil, errors.Join(ErrUnknownFeature, err)
	}
	return &id, nil
}

func (g *Gateway) newGate() *gate.Gate {
	opts := []gate.Option{
		gate.WithView(g.view),
		gate.WithLoadingTimeout(g.loadingTimeout),
		gate.WithLogger(g.log),
	}
	if g.metrics != nil {
		opts = append(opts, gate.WithObserver(func(_ gate.Inputs, d gate.Decision) {
			g.metrics.GateResolved(string(d))
		}))
	}
	return gate.New(g.evaluator, opts...)
}

// gatePanel renders the gate for the requested feature. Anonymous callers
// get the sign-in panel without an access check.
func (g *Gateway) gatePanel(r *http.Request) Response {
	id, err := featureParam(r)
	if err != nil {
		return JSONError(http.StatusBadRequest, "unknown_feature", err.Error())
	}

	gt := g.newGate()
	if raw := r.URL.Query().Get("width"); raw != "" {
		if width, err := strconv.Atoi(raw); err == nil {
			gt.Resize(width)
		}
	}
	gt.Update(r.Context(), gate.Inputs{User: userFrom(r), Feature: id})
	return gateResponse{gate: gt, log: g.log}
}

// gateResponse waits for the gate to resolve. Datastar clients first get the
// loading panel and then the resolved one over the same stream.
type gateResponse struct {
	gate *gate.Gate
	log  *slog.Logger
}

func (gr gateResponse) Render(w http.ResponseWriter, r *http.Request) error {
	defer gr.gate.Close()

	if !isDataStar(r) {
		gr.wait(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		return gr.gate.Component().Render(r.Context(), w)
	}

	sse := datastar.NewSSE(w, r)
	if !gr.gate.Decision().Terminal() {
		if err := sse.PatchElementTempl(gr.gate.Component(), gatePatch()...); err != nil {
			return err
		}
	}
	gr.wait(r.Context())
	return sse.PatchElementTempl(gr.gate.Component(), gatePatch()...)
}

func (gr gateResponse) wait(ctx context.Context) {
	d, err := gr.gate.Wait(ctx)
	if err != nil && ctx.Err() == nil {
		gr.log.WarnContext(ctx, "gate did not resolve", logger.Decision(string(d)), logger.Error(err))
	}
}

type accessResponse struct {
	Decision  gate.Decision `json:"decision"`
	HasAccess bool          `json:"hasAccess"`
	Reason    access.Reason `json:"reason"`
	Feature   string        `json:"feature,omitempty"`
}

// accessCheck answers the same question as the gate panel as JSON.
func (g *Gateway) accessCheck(r *http.Request) Response {
	id, err := featureParam(r)
	if err != nil {
		return JSONError(http.StatusBadRequest, "unknown_feature", err.Error())
	}

	gt := g.newGate()
	defer gt.Close()
	gt.Update(r.Context(), gate.Inputs{User: userFrom(r), Feature: id})
	d, err := gt.Wait(r.Context())
	if err != nil {
		return JSONError(http.StatusServiceUnavailable, "check_aborted", err.Error())
	}

	res := gt.Result()
	resp := accessResponse{Decision: d, HasAccess: res.HasAccess, Reason: res.Reason}
	if id != nil {
		resp.Feature = id.String()
	}
	return JSON(resp)
}
