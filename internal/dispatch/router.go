package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Update is a partial state update returned by a middleware. It receives the
// current state and returns the next one.
type Update[T any] func(T) T

// Middleware inspects the request and the current state and returns an update to
// fold into it. A nil update leaves the state unchanged. A non-nil error aborts the
// request with an internal error.
type Middleware[T any] func(ctx context.Context, state T, r *http.Request) (Update[T], error)

// Context is passed to handlers: bound path parameters and the folded state.
type Context[S any] struct {
	Params Params
	State  S
}

// Handler serves a matched request. A returned error becomes an internal error
// response unless the handler already wrote one.
type Handler[S any] func(w http.ResponseWriter, r *http.Request, c Context[S]) error

// Scope selects which state a route's middleware and handler operate on.
type Scope int

const (
	// ScopeGlobal routes fold their middleware into the process-wide state.
	ScopeGlobal Scope = iota
	// ScopeRequest routes fold their middleware into a per-request copy of the initial request state.
	ScopeRequest
)

func (s Scope) String() string {
	if s == ScopeRequest {
		return "request"
	}

	return "global"
}

type route struct {
	method  string
	pattern pattern
	scope   Scope
	serve   func(w http.ResponseWriter, r *http.Request, params Params) error
}

// Router matches requests to routes, runs global then route middleware and
// invokes the handler. G is the process-wide state, R the per-request state.
type Router[G, R any] struct {
	mu      sync.RWMutex
	global  G
	request R

	globalMiddleware []Middleware[G]
	routes           []route
	logger           *zap.Logger
}

// New creates a Router with the initial global state and the initial value each
// request-scoped route starts from.
func New[G, R any](global G, request R, logger *zap.Logger) *Router[G, R] {
	return &Router[G, R]{
		global:  global,
		request: request,
		logger:  logger,
	}
}

// UseGlobal appends middleware run for every matched request, before route middleware.
func (rt *Router[G, R]) UseGlobal(mw ...Middleware[G]) {
	rt.globalMiddleware = append(rt.globalMiddleware, mw...)
}

// GlobalState returns a snapshot of the process-wide state.
func (rt *Router[G, R]) GlobalState() G {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	return rt.global
}

func (rt *Router[G, R]) applyGlobal(update Update[G]) G {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if update != nil {
		rt.global = update(rt.global)
	}

	return rt.global
}

// foldGlobal runs mws in order; each one sees the updates of the previous ones.
func (rt *Router[G, R]) foldGlobal(ctx context.Context, r *http.Request, mws []Middleware[G]) (G, error) {
	state := rt.GlobalState()

	for _, mw := range mws {
		update, err := mw(ctx, state, r)
		if err != nil {
			return state, err
		}

		state = rt.applyGlobal(update)
	}

	return state, nil
}

// HandleWithGlobal registers a route whose middleware updates the global state.
func (rt *Router[G, R]) HandleWithGlobal(method, path string, handler Handler[G], mws ...Middleware[G]) {
	rt.add(method, path, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, params Params) error {
		state, err := rt.foldGlobal(r.Context(), r, mws)
		if err != nil {
			return err
		}

		return handler(w, r, Context[G]{Params: params, State: state})
	})
}

// HandleWithRequest registers a route whose middleware folds into per-request state.
func (rt *Router[G, R]) HandleWithRequest(method, path string, handler Handler[R], mws ...Middleware[R]) {
	rt.add(method, path, ScopeRequest, func(w http.ResponseWriter, r *http.Request, params Params) error {
		state := rt.request

		for _, mw := range mws {
			update, err := mw(r.Context(), state, r)
			if err != nil {
				return err
			}

			if update != nil {
				state = update(state)
			}
		}

		return handler(w, r, Context[R]{Params: params, State: state})
	})
}

// Handle registers a request-scoped route.
func (rt *Router[G, R]) Handle(method, path string, handler Handler[R], mws ...Middleware[R]) {
	rt.HandleWithRequest(method, path, handler, mws...)
}

func (rt *Router[G, R]) Get(path string, handler Handler[R], mws ...Middleware[R]) {
	rt.Handle(http.MethodGet, path, handler, mws...)
}

func (rt *Router[G, R]) Post(path string, handler Handler[R], mws ...Middleware[R]) {
	rt.Handle(http.MethodPost, path, handler, mws...)
}

func (rt *Router[G, R]) Put(path string, handler Handler[R], mws ...Middleware[R]) {
	rt.Handle(http.MethodPut, path, handler, mws...)
}

func (rt *Router[G, R]) Delete(path string, handler Handler[R], mws ...Middleware[R]) {
	rt.Handle(http.MethodDelete, path, handler, mws...)
}

// add panics on an invalid pattern; routes are registered at startup.
func (rt *Router[G, R]) add(method, path string, scope Scope, serve func(http.ResponseWriter, *http.Request, Params) error) {
	p, err := parsePattern(path)
	if err != nil {
		panic(err)
	}

	rt.routes = append(rt.routes, route{method: method, pattern: p, scope: scope, serve: serve})
}

func (rt *Router[G, R]) match(r *http.Request) (*route, Params) {
	for i := range rt.routes {
		if rt.routes[i].method != r.Method {
			continue
		}

		if params, ok := rt.routes[i].pattern.match(r.URL.Path); ok {
			return &rt.routes[i], params
		}
	}

	return nil, nil
}

func (rt *Router[G, R]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matched, params := rt.match(r)
	if matched == nil {
		http.Error(w, "Not Found", http.StatusNotFound)

		return
	}

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

	if err := rt.dispatch(ww, r, matched, params); err != nil {
		rt.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", matched.pattern.raw),
			zap.Stringer("scope", matched.scope),
			zap.Error(err),
		)

		// too late for a 500 once the status line is out
		if ww.Status() == 0 {
			http.Error(ww, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// dispatch runs the global chain, then the route. Panics are returned as errors.
func (rt *Router[G, R]) dispatch(w http.ResponseWriter, r *http.Request, matched *route, params Params) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}

			err = fmt.Errorf("panic: %v\n%s", v, debug.Stack())
		}
	}()

	if _, err := rt.foldGlobal(r.Context(), r, rt.globalMiddleware); err != nil {
		return err
	}

	return matched.serve(w, r, params)
}
