// Package httpapi HTTP-интерфейс жизненного цикла заявок для дашборда.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/Freeeeeet/askgrandpa/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Requests операции над заявками, которые выставляет API
type Requests interface {
	Create(ctx context.Context, in service.CreateRequestInput) (*model.Request, error)
	Accept(ctx context.Context, in service.AcceptInput) (*model.Request, error)
	Confirm(ctx context.Context, in service.ConfirmInput) (*model.Request, error)
	Decline(ctx context.Context, in service.DeclineInput) (*model.Request, error)
	Complete(ctx context.Context, requestID string) (*model.Request, error)
	GetByID(ctx context.Context, id string) (*model.Request, error)
	ListForParty(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error)
	Session(ctx context.Context, requestID string) (service.Session, error)
	Sessions(ctx context.Context, partyID string) (*service.SessionsView, error)
}

// Profiles запись профилей для стендов без внешней системы регистрации
type Profiles interface {
	Upsert(ctx context.Context, profile *model.Profile) error
}

// Pinger проверка готовности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	Requests       Requests
	Profiles       Profiles
	Ready          Pinger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RateLimit      int
	Logger         *zap.Logger
}

type handler struct {
	requests Requests
	profiles Profiles
	logger   *zap.Logger
}

// Router собирает маршруты API, здоровья и метрик
func Router(opts RouterOptions) http.Handler {
	h := &handler{requests: opts.Requests, profiles: opts.Profiles, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready.Ping(req.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}

		r.Post("/requests", h.createRequest)
		r.Route("/requests/{id}", func(r chi.Router) {
			r.Get("/", h.getRequest)
			r.Get("/session", h.getSession)
			r.Post("/accept", h.acceptRequest)
			r.Post("/confirm", h.confirmRequest)
			r.Post("/decline", h.declineRequest)
			r.Post("/complete", h.completeRequest)
		})

		r.Get("/parties/{partyID}/requests", h.listRequests)
		r.Get("/parties/{partyID}/sessions", h.listSessions)

		if h.profiles != nil {
			r.Put("/profiles/{id}", h.upsertProfile)
		}
	})

	return otelhttp.NewHandler(r, "askgrandpa.http")
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
