package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// DictionaryHandler handles dictionary inspection requests.
type DictionaryHandler struct {
	service  DictionaryServiceInterface
	logger   *slog.Logger
	validate *validator.Validate
}

// NewDictionaryHandler creates a dictionary handler
func NewDictionaryHandler(service DictionaryServiceInterface, logger *slog.Logger) *DictionaryHandler {
	return &DictionaryHandler{
		service:  service,
		logger:   logger.With(slog.String("component", "dictionary_handler")),
		validate: validator.New(),
	}
}

// Routes returns the dictionary routes
func (h *DictionaryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/inspect", h.Inspect)
	return r
}

// inspectRequest is the POST /api/dictionary/inspect body.
type inspectRequest struct {
	Sources         []string `json:"sources" validate:"required,min=1,dive,required"`
	NamespacedNames bool     `json:"namespaced_names"`
}

// Inspect handles POST /api/dictionary/inspect
func (h *DictionaryHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req inspectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeProblem(w, r, &problem{
			Type:   "/errors/bad-request",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: "request body is not valid JSON",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, r, &problem{
			Type:   "/errors/bad-request",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}

	summary, err := h.service.Inspect(ctx, req.Sources, req.NamespacedNames)
	if err != nil {
		h.logger.ErrorContext(ctx, "dictionary inspection failed",
			slog.String("error", err.Error()))
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, summary)
}
