package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pocketlm/core/internal/analysis/history"
	"github.com/pocketlm/core/internal/handler/chat"
	"github.com/pocketlm/core/internal/handler/live"
	"github.com/pocketlm/core/internal/handler/models"
	"github.com/pocketlm/core/internal/handler/stream"
	middlewarePkg "github.com/pocketlm/core/internal/middleware"
	chatModel "github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	chatService "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/internal/telemetry"
	"github.com/pocketlm/core/pkg/utils"
)

// Options carries the knobs main wires from config into the route tree.
type Options struct {
	History   history.Options
	Overrides llm.GenOptions
	Streaming bool
	Assistant chatModel.User
	Limits    middlewarePkg.LimitConfig
}

// NewRouter wires HTTP routes to core services. rt may be nil when no
// runtime backend is configured; generation routes then answer 503.
func NewRouter(catalog llm.Store, chatSvc *chatService.Service, engine *prompt.Engine, rt *runtime.Client, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	modelHandler := models.New(catalog, rt)
	chatHandler := chat.New(chatSvc, engine, opts.History, opts.Assistant)

	var streamHandler *stream.Handler
	var liveHandler *live.Handler
	if rt != nil {
		streamHandler = stream.New(rt, engine, chatSvc, stream.Config{
			Overrides: opts.Overrides,
			Streaming: opts.Streaming,
			Assistant: opts.Assistant,
		})
		liveHandler = live.New(rt, engine, chatSvc, live.Config{
			Overrides: opts.Overrides,
			Streaming: opts.Streaming,
			Assistant: opts.Assistant,
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(api chi.Router) {
		modelHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		// Generation endpoints share a per-session rate limit.
		limited := api.With(middlewarePkg.RateLimit(opts.Limits))

		limited.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "generation unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			// Failures surface as SSE error frames; here we only log.
			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				slog.Error("stream request failed", "session", sessionID, "err", err)
			}
		})

		if liveHandler != nil {
			liveHandler.RegisterRoutes(limited)
		} else {
			limited.Get("/live/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "generation unavailable")
			})
		}
	})

	return r
}
