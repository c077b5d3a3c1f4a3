package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"canmlio/internal/decode"
	"canmlio/internal/middleware"
	"canmlio/internal/services"
	"canmlio/internal/websocket"
)

// ConvertHandler handles conversion requests.
type ConvertHandler struct {
	service  ConvertServiceInterface
	hub      *websocket.Hub
	logger   *slog.Logger
	validate *validator.Validate
}

// NewConvertHandler creates a conversion handler. A nil hub disables
// progress broadcasting.
func NewConvertHandler(service ConvertServiceInterface, hub *websocket.Hub, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		service:  service,
		hub:      hub,
		logger:   logger.With(slog.String("component", "convert_handler")),
		validate: validator.New(),
	}
}

// Routes returns the conversion routes
func (h *ConvertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.Convert)
	return r
}

// Convert handles POST /api/convert
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	var req services.ConvertRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.logger.WarnContext(ctx, "malformed convert request",
			slog.String("error", err.Error()))
		writeProblem(w, r, &problem{
			Type:   "/errors/bad-request",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: "request body is not valid JSON",
		})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.WarnContext(ctx, "invalid convert request",
			slog.String("error", err.Error()))
		writeProblem(w, r, &problem{
			Type:   "/errors/bad-request",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	var reporter decode.Reporter
	if h.hub != nil {
		reporter = websocket.NewProgressReporter(h.hub, reqID)
	}

	result, err := h.service.Convert(ctx, req, reporter)
	if err != nil {
		h.logger.ErrorContext(ctx, "conversion failed",
			slog.String("error", err.Error()))
		if h.hub != nil {
			h.hub.Broadcast(websocket.Event{
				Type:  websocket.TypeError,
				RunID: reqID,
				Data:  map[string]string{"error": err.Error()},
			})
		}
		renderError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.Event{
			Type:  websocket.TypeComplete,
			RunID: reqID,
			Data:  result,
		})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}
