package routing

import (
	"net/http"
	"runtime/debug"
	"sort"

	"github.com/rs/zerolog"
)

type Router struct {
	classifier *Classifier
	log        zerolog.Logger
	routes     map[string]map[string]routeEntry
	patterns   []patternRoutes
}

type patternRoutes struct {
	pattern PathPattern
	methods map[string]routeEntry
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

// NewRouter builds a router whose recovered panics are logged to log.
func NewRouter(classifier *Classifier, log zerolog.Logger) *Router {
	return &Router{
		classifier: classifier,
		log:        log,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h for method and path. A path with {name} segments matches
// any value there; handlers read it with Request.PathValue.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	methods := r.methodsFor(path)
	methods[method] = routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().
						Str("path", req.URL.Path).
						Str("method", req.Method).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("handler panic")
					WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}
}

func (r *Router) methodsFor(path string) map[string]routeEntry {
	if p, ok := parsePathPattern(path); ok {
		for _, pr := range r.patterns {
			if pr.pattern.raw == path {
				return pr.methods
			}
		}
		pr := patternRoutes{pattern: p, methods: make(map[string]routeEntry)}
		r.patterns = append(r.patterns, pr)
		return pr.methods
	}
	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	return r.routes[path]
}

// Routes lists registered "METHOD path" pairs in sorted order.
func (r *Router) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for path, methods := range r.routes {
		for method := range methods {
			out = append(out, method+" "+path)
		}
	}
	for _, pr := range r.patterns {
		for method := range pr.methods {
			out = append(out, method+" "+pr.pattern.raw)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		methods, ok = r.matchPattern(req)
	}
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func (r *Router) matchPattern(req *http.Request) (map[string]routeEntry, bool) {
	for _, pr := range r.patterns {
		params, ok := pr.pattern.Params(req.URL.Path)
		if !ok {
			continue
		}
		for name, value := range params {
			req.SetPathValue(name, value)
		}
		return pr.methods, true
	}
	return nil, false
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
