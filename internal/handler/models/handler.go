package models

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pocketlm/core/internal/model/llm"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/pkg/format"
	"github.com/pocketlm/core/pkg/utils"
)

// Handler serves the installed model catalog.
type Handler struct {
	models llm.Store
	rt     *runtime.Client
}

// New creates a models handler. rt may be nil when no runtime is
// configured; the runtime info route then reports unavailable.
func New(models llm.Store, rt *runtime.Client) *Handler {
	return &Handler{models: models, rt: rt}
}

// RegisterRoutes mounts the model catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
	r.Get("/models/{modelID}", h.handleGetModel)
	r.Get("/runtime", h.handleRuntimeInfo)
}

// modelView decorates a catalog entry with display strings.
type modelView struct {
	llm.Model
	SizeDisplay   string `json:"sizeDisplay"`
	ParamsDisplay string `json:"paramsDisplay"`
}

func newModelView(m llm.Model) modelView {
	return modelView{
		Model:         m,
		SizeDisplay:   format.ByteSize(m.SizeBytes),
		ParamsDisplay: format.ParamCount(m.ParamCount),
	}
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	items := h.models.List()
	views := make([]modelView, 0, len(items))
	for _, m := range items {
		views = append(views, newModelView(m))
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")
	model, ok := h.models.FindByID(modelID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "model not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, newModelView(model))
}

func (h *Handler) handleRuntimeInfo(w http.ResponseWriter, r *http.Request) {
	if h.rt == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "runtime not configured")
		return
	}

	props, err := h.rt.Info(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "runtime unreachable")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"modelPath":   props.ModelPath,
		"contextSize": props.ContextSize,
		"slots":       props.SlotCount,
	})
}
