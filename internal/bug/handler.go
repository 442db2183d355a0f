package bug

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bugtracker-service/internal/httputil"
	"bugtracker-service/internal/project"
	"bugtracker-service/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/bugs", h.Create)
	r.Get("/bugs", h.List)
	r.Get("/bugs/{id}", h.Get)
	r.Put("/bugs/{id}", h.Update)
	r.Patch("/bugs/{id}", h.Update)
	r.Delete("/bugs/{id}", h.Delete)
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

	created, err := h.service.CreateBug(r.Context(), ident, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("bug created", "bug_id", created.ID, "project_id", created.ProjectID, "creator_id", ident.UserID)
	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bugs, err := h.service.ListBugs(r.Context(), ident)
	if err != nil {
		h.logger.Error("failed to list bugs", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if bugs == nil {
		bugs = []Bug{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, bugs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid bug id")
		return
	}

	b, err := h.service.GetBug(r.Context(), ident, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, b)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid bug id")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.UpdateBug(r.Context(), ident, id, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := user.IdentityFrom(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid bug id")
		return
	}

	if err := h.service.DeleteBug(r.Context(), ident, id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrNotProjectMember),
		errors.Is(err, ErrOnlyQACanCreate),
		errors.Is(err, ErrNotAssignee),
		errors.Is(err, ErrNotBugProjectManager),
		errors.Is(err, ErrAttachmentDeveloperOnly):
		httputil.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &statusErr),
		errors.Is(err, ErrAttachmentNotObject),
		errors.Is(err, ErrUnknownType),
		errors.Is(err, ErrUnknownStatus):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBugNotFound), errors.Is(err, project.ErrProjectNotFound), errors.Is(err, user.ErrUserNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateTitle):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
