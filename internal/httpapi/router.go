package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты API.
func NewRouter(handler *Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", handler.GetOrder)
			r.Post("/items", handler.AddItem)
			r.Patch("/items/{itemID}/decrement", handler.DecrementItem)
			r.Delete("/items/{itemID}", handler.RemoveItem)
		})
	})

	r.Route("/stock", func(r chi.Router) {
		r.Get("/", handler.ListStock)
		r.Put("/{productID}", handler.SetStock)
		r.Post("/{productID}/decrease", handler.DecreaseStock)
	})

	return r
}

// requestLogger пишет access-лог через logrus вместо стандартного chi-логгера.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}
