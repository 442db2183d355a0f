package user

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bugtracker-service/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// UnreadCounter is satisfied by the notification repository.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type Handler struct {
	service  Service
	unread   UnreadCounter
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, unread UnreadCounter, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		unread:   unread,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterPublicRoutes exposes the read-only user listing.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/users", h.GetAllUsers)
	r.Get("/users/{id}", h.GetUser)
}

// RegisterRoutes exposes the self-profile endpoints (auth required).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
	r.Patch("/auth/me", h.UpdateMe)
}

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAllUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to fetch user", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, u)
}

// MeResponse mirrors the self-profile payload: the account plus its unread
// notification counter.
type MeResponse struct {
	*User
	UnreadNotifications int `json:"unread_notifications_count"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.service.GetUserByID(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("failed to fetch profile", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	unread := 0
	if h.unread != nil {
		if n, err := h.unread.CountUnread(r.Context(), ident.UserID); err == nil {
			unread = n
		}
	}

	httputil.RespondWithJSON(w, http.StatusOK, MeResponse{User: u, UnreadNotifications: unread})
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), ident.UserID, req)
	if err != nil {
		h.logger.Error("profile update failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, u)
}
