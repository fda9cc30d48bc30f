package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	emotionHandler "github.com/maeumlab/emotion-letterbox/backend/internal/handler/emotion"
	"github.com/maeumlab/emotion-letterbox/backend/internal/handler/feed"
	letterHandler "github.com/maeumlab/emotion-letterbox/backend/internal/handler/letter"
	middlewarePkg "github.com/maeumlab/emotion-letterbox/backend/internal/middleware"
	"github.com/maeumlab/emotion-letterbox/backend/internal/service/pipeline"
	"github.com/maeumlab/emotion-letterbox/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(pipe *pipeline.Pipeline, st *store.Store, feedHandler *feed.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// emotionHandler.Broadcaster 是接口，避免把 nil *feed.Handler 包进非空接口。
	var broadcaster emotionHandler.Broadcaster
	if feedHandler != nil {
		broadcaster = feedHandler
	}

	emotions := emotionHandler.New(pipe, st, broadcaster)
	letters := letterHandler.New(st)

	r.Route("/api", func(api chi.Router) {
		emotions.RegisterRoutes(api)
		letters.RegisterRoutes(api)

		if feedHandler != nil {
			feedHandler.RegisterRoutes(api)
		}
	})

	return r
}
