package ai

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bugtracker-service/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	client   Client
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(client Client, logger *slog.Logger) *Handler {
	return &Handler{
		client:   client,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-ai", h.Generate)
}

type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := h.client.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("text generation failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "text generation failed")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, GenerateResponse{Response: text})
}
