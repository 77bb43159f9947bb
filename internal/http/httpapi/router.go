package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cleanreel/internal/http/handlers"
	"cleanreel/internal/infra"
	"cleanreel/internal/middleware"
)

// Options carries router-level settings sourced from config.
type Options struct {
	Logger             infra.Logger
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimiddleware.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
	)
	if opts.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.SessionCreate)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", app.SessionGet)
			r.Delete("/", app.SessionDelete)
			r.Post("/video", app.SessionUpload)
			r.Get("/video", app.SessionDownload)
			r.Get("/frame", app.SessionFrame)
			r.Post("/generate", app.SessionGenerate)
			r.Post("/reset", app.SessionReset)
		})
	})

	return r
}
