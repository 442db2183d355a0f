package notification

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bugtracker-service/internal/httputil"
	"bugtracker-service/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.List)
	r.Post("/notifications", h.Create)
	r.Post("/notifications/{id}/read", h.MarkRead)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notifications, err := h.repo.ListForUser(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, notifications)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := ParseType(req.Type)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.repo.Create(r.Context(), &Notification{
		UserID:      ident.UserID,
		Type:        kind,
		Title:       req.Title,
		Message:     req.Message,
		RelatedLink: req.RelatedLink,
	})
	if err != nil {
		h.logger.Error("failed to create notification", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.repo.MarkRead(r.Context(), ident.UserID, id); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			httputil.RespondWithError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "notification marked as read"})
}
