package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// handle adapts a Response-returning function to http.HandlerFunc.
func (g *Gateway) handle(fn func(r *http.Request) Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := fn(r)
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := resp.Render(w, r); err != nil {
			g.log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON writes v with status 200 unless another status is given.
func JSON(v any, status ...int) Response {
	code := http.StatusOK
	if len(status) > 0 {
		code = status[0]
	}
	return jsonResponse{status: code, body: v}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes {"error": msg} with status.
func JSONError(status int, code, msg string) Response {
	return jsonResponse{status: status, body: ErrorBody{Error: msg, Code: code}}
}

type redirectResponse struct {
	url  string
	code int
}

// Render answers datastar requests with an SSE redirect and everything else
// with a plain HTTP redirect.
func (rr redirectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if isDataStar(r) {
		return datastar.NewSSE(w, r).Redirect(rr.url)
	}
	http.Redirect(w, r, rr.url, rr.code)
	return nil
}

// Redirect sends the client to url with 303 See Other.
func Redirect(url string) Response {
	return redirectResponse{url: url, code: http.StatusSeeOther}
}

// RedirectWithCode sends the client to url with a custom status.
func RedirectWithCode(url string, code int) Response {
	return redirectResponse{url: url, code: code}
}

type templResponse struct {
	component templ.Component
	status    int
	options   []datastar.PatchElementOption
}

// Render patches the component over SSE for datastar requests and writes
// plain HTML otherwise.
func (t templResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if isDataStar(r) {
		return datastar.NewSSE(w, r).PatchElementTempl(t.component, t.options...)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if t.status != 0 {
		w.WriteHeader(t.status)
	}
	return t.component.Render(r.Context(), w)
}

// Templ renders component as HTML or as a datastar element patch.
func Templ(component templ.Component, opts ...datastar.PatchElementOption) Response {
	return templResponse{component: component, options: opts}
}

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// NoContent answers 204.
func NoContent() Response { return noContent{} }
