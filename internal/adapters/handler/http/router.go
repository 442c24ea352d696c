package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
)

type Handlers struct {
	Polls   *PollHandler
	Ballots *BallotHandler
	Results *ResultsHandler
}

// NewHandler builds the API router. gatherer may be nil, in which case
// /metrics is not served.
func NewHandler(h Handlers, tokens ports.TokenService, gatherer prometheus.Gatherer, l *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(l))
	r.Use(middleware.Recoverer)

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(tokens, l))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})

		r.Route("/polls/{id}", func(r chi.Router) {
			r.Get("/", h.Polls.GetPoll)
			r.Get("/eligibility", h.Polls.Eligibility)
			r.Post("/ballots", h.Ballots.CastBallot)
			r.Get("/results", h.Results.GetResults)
			r.Get("/results/live", h.Results.LiveResults)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/open", h.Polls.OpenPoll)
				r.Post("/close", h.Polls.ClosePoll)
			})
		})
	})

	return r
}
