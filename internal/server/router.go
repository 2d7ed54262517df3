package server

import (
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/shared"
)

var _ Router = (*CallbackRouter)(nil)

// CallbackRouter dispatches the loopback listener's routes by exact path, then method.
// Routes must be registered before the router starts serving.
type CallbackRouter struct {
	logger      *log.Logger
	routes      map[string]map[string]http.Handler
	middlewares []Middleware
}

// NewCallbackRouter creates an empty router. Rejected requests are logged at debug level.
func NewCallbackRouter(logger *log.Logger) *CallbackRouter {
	return &CallbackRouter{
		logger: shared.WithLogger(logger, "component", "callback"),
		routes: make(map[string]map[string]http.Handler),
	}
}

// Use appends middleware. The first one added is the outermost, and every request passes
// through the stack, rejected ones included.
func (r *CallbackRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method on path, replacing any earlier registration of the pair.
func (r *CallbackRouter) Handle(method, path string, handler http.Handler) {
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[string]http.Handler)
		r.routes[path] = methods
	}
	methods[strings.ToUpper(method)] = handler
}

// Handler registers every route h reports. Routes read "METHOD /path"; a bare path means GET.
func (r *CallbackRouter) Handler(h Handler) {
	for _, route := range h.Routes() {
		method, path, ok := strings.Cut(strings.TrimSpace(route), " ")
		if !ok {
			method, path = http.MethodGet, route
		}
		r.Handle(method, strings.TrimSpace(path), h)
	}
}

func (r *CallbackRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = http.HandlerFunc(r.dispatch)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	h.ServeHTTP(w, req)
}

func (r *CallbackRouter) dispatch(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		r.reject(w, req, http.StatusNotFound, shared.ErrRouteNotFound)
		return
	}

	h, ok := methods[req.Method]
	if !ok && req.Method == http.MethodHead {
		h, ok = methods[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", strings.Join(slices.Sorted(maps.Keys(methods)), ", "))
		r.reject(w, req, http.StatusMethodNotAllowed, shared.ErrMethodNotAllowed)
		return
	}
	h.ServeHTTP(w, req)
}

func (r *CallbackRouter) reject(w http.ResponseWriter, req *http.Request, status int, err error) {
	r.logger.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "error", err)
	http.Error(w, err.Error(), status)
}
