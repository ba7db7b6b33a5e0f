package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/time/rate"

	"github.com/hanpama/classgraph/internal/errs"
	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	executor "github.com/hanpama/classgraph/internal/executor"
	language "github.com/hanpama/classgraph/internal/language"
	reqid "github.com/hanpama/classgraph/internal/reqid"
)

// Handler serves GraphQL requests against the engine current when each
// request arrives.
type Handler struct {
	engines Engines
	opt     Options
	limiter *rate.Limiter
}

// New returns a handler with a 10s default timeout and the playground
// enabled, adjusted by opts.
func New(engines Engines, opts ...Option) (*Handler, error) {
	if engines == nil {
		return nil, errors.New("server: engines are required")
	}
	o := Options{Timeout: 10 * time.Second, Playground: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.RateLimit < 0 || o.Burst < 0 {
		return nil, errors.New("server: rate limit and burst must not be negative")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	h := &Handler{engines: engines, opt: o}
	if o.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(o.RateLimit), max(o.Burst, 1))
	}
	return h, nil
}

// Mount registers the endpoint at path and, when enabled, the playground at
// /playground.
func (h *Handler) Mount(mux *http.ServeMux, path string) {
	mux.Handle(path, h)
	if h.opt.Playground {
		mux.Handle("/playground", playground.Handler("classgraph", path))
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	h.cors(w, r)

	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	status := h.serve(ctx, w, r.WithContext(ctx))
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
}

// serve answers r and returns the status written.
func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	switch {
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	case r.Method != http.MethodGet && r.Method != http.MethodPost:
		return h.write(w, http.StatusMethodNotAllowed, errorResult(errs.TypeOperationNotSupported, "method not allowed"))
	case h.limiter != nil && !h.limiter.Allow():
		rid, _ := reqid.FromContext(ctx)
		h.opt.Logger.WarnContext(ctx, "rate limit exceeded", "request_id", rid, "remote", r.RemoteAddr)
		return h.write(w, http.StatusTooManyRequests, errorResult(errs.TypeDataFetching, "rate limit exceeded"))
	case r.Method == http.MethodGet && h.opt.Playground && r.URL.Query().Get("query") == "" && acceptsHTML(r.Header.Get("Accept")):
		playground.Handler("classgraph", r.URL.Path).ServeHTTP(w, r)
		return http.StatusOK
	}

	reqs, batch, bad := readRequests(r, h.opt.MaxBodyBytes)
	if bad != nil {
		return h.write(w, bad.status, errorResult(errs.TypeInvalidSyntax, bad.message))
	}
	eng := h.engines.Engine()
	if eng == nil {
		return h.write(w, http.StatusServiceUnavailable, errorResult(errs.TypeDataFetching, "schema not loaded"))
	}
	results := make([]*executor.ExecutionResult, len(reqs))
	for i, req := range reqs {
		results[i] = h.execute(ctx, eng, req)
	}
	if batch {
		return h.write(w, http.StatusOK, results)
	}
	return h.write(w, http.StatusOK, results[0])
}

func (h *Handler) execute(ctx context.Context, eng *Engine, req GraphQLRequest) *executor.ExecutionResult {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return fromGQLErrors(errs.TypeInvalidSyntax, language.Errors(err))
	}
	opType := ""
	if op := language.Operation(doc, req.OperationName); op != nil {
		opType = string(op.Operation)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	var result *executor.ExecutionResult
	if list := language.Validate(eng.Schema, doc); len(list) > 0 {
		result = fromGQLErrors(errs.TypeValidation, list)
	} else {
		result = eng.Executor.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	}
	finish := events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Duration:      time.Since(start),
	}
	for _, e := range result.Errors {
		finish.Errors = append(finish.Errors, e)
	}
	eventbus.Publish(ctx, finish)
	return result
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
	return status
}

// cors sets the CORS headers when the request origin is allowed.
func (h *Handler) cors(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	allowed := h.opt.AllowedOrigins
	if origin == "" || len(allowed) == 0 {
		return
	}
	switch {
	case slices.Contains(allowed, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(allowed, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	default:
		return
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "text/html") || part == "*/*" {
			return true
		}
	}
	return false
}

func errorResult(errorType, message string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: message, ErrorType: errorType}}}
}

func fromGQLErrors(errorType string, list gqlerror.List) *executor.ExecutionResult {
	res := &executor.ExecutionResult{Errors: make([]executor.GraphQLError, len(list))}
	for i, e := range list {
		ge := executor.GraphQLError{Message: e.Message, ErrorType: errorType}
		for _, loc := range e.Locations {
			ge.Locations = append(ge.Locations, executor.Location{Line: loc.Line, Column: loc.Column})
		}
		res.Errors[i] = ge
	}
	return res
}
