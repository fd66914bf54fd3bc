// Package statusserver exposes a running session over local HTTP: state for
// dashboards and scripts, plus the participant actions.
package statusserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// ControlKey, when set, is required on every POST route.
	ControlKey string
}

func New(sess Session, opts Options) *chi.Mux {
	h := &handlers{sess: sess}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(RequestLogMiddleware()).Get("/healthz", h.health())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/session", func(r chi.Router) {
		r.Use(RequestLogMiddleware())
		r.Get("/state", h.state())
		r.Get("/leaderboard", h.leaderboard())

		r.Group(func(r chi.Router) {
			r.Use(ControlKeyMiddleware(opts.ControlKey))
			r.Post("/turns", h.submitTurn())
			r.Post("/refresh", h.refresh())
			r.Post("/proceed", h.proceed())
			r.Post("/comprehension/start", h.startComprehension())
			r.Post("/comprehension/answers", h.submitComprehension())
			r.Post("/analysis", h.analysis())
			r.Post("/alert/clear", h.clearAlert())
		})
	})
	return r
}

// LogRoutes prints the registered routes, sorted by path then method.
func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Status routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
