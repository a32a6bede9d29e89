package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/redsinal/questlog/internal/app"
	"github.com/redsinal/questlog/internal/ports"
)

type Server struct {
	logger  zerolog.Logger
	series  *app.SeriesService
	anilist *app.AniListService
	bus     ports.EventBus
}

func NewServer(logger zerolog.Logger, series *app.SeriesService, anilist *app.AniListService, bus ports.EventBus) *Server {
	return &Server{logger: logger, series: series, anilist: anilist, bus: bus}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		// The events stream stays open indefinitely, so it is mounted
		// outside any timeout middleware.
		r.Get("/events", s.handleEvents)

		// Scan and sync walk every tracked series over the network; they
		// get a longer timeout than single-page requests.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(batchRequestTimeout))
			r.Post("/scan", s.handleScan)
			r.Post("/anilist/sync", s.handleAniListSync)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultRequestTimeout))
			r.Get("/health", s.handleHealth)
			r.Get("/version", s.handleVersion)

			if s.series != nil {
				NewSeriesHandler(s.series).Routes(r)
			}
			if s.anilist != nil {
				NewAniListHandler(s.anilist).Routes(r)
			}
		})
	})

	return r
}
