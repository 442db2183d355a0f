package upload

import (
	"errors"
	"log/slog"
	"net/http"

	"bugtracker-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	storage *Storage
	logger  *slog.Logger
}

func NewHandler(storage *Storage, logger *slog.Logger) *Handler {
	return &Handler{storage: storage, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)
}

type Response struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// The multipart overhead is small next to the file cap, so a little
	// slack on the request body keeps the size check on the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httputil.RespondWithError(w, http.StatusBadRequest, "file exceeds the 5 MiB size limit")
			return
		}
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	category, err := ParseCategory(r.FormValue("type"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > MaxFileSize {
		httputil.RespondWithError(w, http.StatusBadRequest, "file exceeds the 5 MiB size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !category.AllowsContentType(contentType) {
		httputil.RespondWithError(w, http.StatusBadRequest, "unsupported content type "+contentType)
		return
	}

	filename, relPath, err := h.storage.Save(category, header.Filename, file)
	if err != nil {
		h.logger.Error("failed to store upload", "error", err, "type", string(category))
		httputil.RespondWithError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	h.logger.Info("file uploaded", "path", relPath, "size", header.Size)
	httputil.RespondWithJSON(w, http.StatusOK, Response{Path: relPath, Filename: filename})
}
