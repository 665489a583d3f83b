package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/vidvault/media-service/apperror"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
	"github.com/vidvault/media-service/services"
)

// maxUploadMemory is the in-memory threshold for multipart form parsing;
// larger bodies spill to request-scoped temp files that RemoveAll cleans up.
const maxUploadMemory = 32 << 20

type contextKey string

const identityKey contextKey = "identity"

type HttpHandler struct {
	authService      services.AuthService
	ingestionService services.IngestionService
	videoService     services.VideoService

	logger logger.Logger
}

func NewHttpHandler(
	authSvc services.AuthService,
	ingestSvc services.IngestionService,
	videoSvc services.VideoService,
	l logger.Logger,
) *HttpHandler {
	return &HttpHandler{
		authService:      authSvc,
		ingestionService: ingestSvc,
		videoService:     videoSvc,
		logger:           l,
	}
}

func (h *HttpHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/login", h.handleLogin)
	mux.Handle("POST /admin/upload", h.requireAdmin(h.handleUpload))
	mux.Handle("POST /admin/bulk-upload", h.requireAdmin(h.handleBulkUpload))
	mux.Handle("GET /admin/videos", h.requireAdmin(h.handleAdminList))
	mux.Handle("DELETE /admin/videos/{id}", h.requireAdmin(h.handleDelete))
	mux.Handle("PATCH /admin/videos/{id}/toggle", h.requireAdmin(h.handleToggle))
	mux.HandleFunc("GET /videos", h.handleList)
	mux.HandleFunc("GET /videos/{id}", h.handleDetail)
	mux.HandleFunc("GET /stream/{id}", h.handleStream)
}

// requireAdmin rejects before any business logic runs.
func (h *HttpHandler) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, apperror.ErrUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func (h *HttpHandler) authenticate(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", apperror.ErrUnauthorized
	}
	return h.authService.Verify(token)
}

func identityFrom(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey).(string)
	return identity
}

func (h *HttpHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.NewValidationError("invalid request body"))
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *HttpHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, apperror.NewValidationError("invalid multipart form"))
		return
	}
	defer h.cleanupForm(r)

	file, header, err := r.FormFile("video")
	if err != nil {
		h.writeError(w, apperror.NewValidationError("missing file field %q", "video"))
		return
	}
	defer file.Close()

	asset, err := h.ingestionService.Ingest(r.Context(), services.IngestInput{
		Source:      file,
		Filename:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Size:        header.Size,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Uploader:    identityFrom(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"video": map[string]any{
			"id":       asset.VideoId,
			"title":    asset.Title,
			"filename": asset.OriginalFilename,
			"size":     asset.SizeBytes,
		},
	})
}

func (h *HttpHandler) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, apperror.NewValidationError("invalid multipart form"))
		return
	}
	defer h.cleanupForm(r)

	headers := r.MultipartForm.File["videos"]
	if len(headers) == 0 {
		h.writeError(w, apperror.NewValidationError("missing file field %q", "videos"))
		return
	}

	title := r.FormValue("title")

	files := make([]services.IngestInput, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err))
			return
		}
		opened = append(opened, f)

		fileTitle := title
		if fileTitle == "" {
			fileTitle = fh.Filename
		}

		files = append(files, services.IngestInput{
			Source:   f,
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Title:    fileTitle,
			Uploader: identityFrom(r.Context()),
		})
	}

	results := h.ingestionService.IngestBatch(r.Context(), files)

	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *HttpHandler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	assets, err := h.videoService.ListAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if assets == nil {
		assets = []models.VideoAsset{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"videos": assets})
}

func (h *HttpHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.videoService.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HttpHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	visibility, err := h.videoService.ToggleVisibility(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"visibility": visibility,
	})
}

func (h *HttpHandler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.videoService.ListPublic(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	if summaries == nil {
		summaries = []models.VideoSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"videos": summaries})
}

func (h *HttpHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	// A valid bearer token lets admins fetch private assets by id.
	includePrivate := false
	if _, err := h.authenticate(r); err == nil {
		includePrivate = true
	}

	detail, err := h.videoService.Get(r.Context(), r.PathValue("id"), includePrivate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"video": detail})
}

func (h *HttpHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	res, err := h.videoService.Stream(r.Context(), r.PathValue("id"), r.Header.Get("Range"))
	if err != nil {
		var rangeErr *services.UnsatisfiableRangeError
		if errors.As(err, &rangeErr) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", rangeErr.Size))
			http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		h.writeError(w, err)
		return
	}

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}

	content := res.Content
	defer content.Body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Range", content.Range.ContentRange(content.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(content.Range.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.Copy(w, content.Body); err != nil {
		h.logger.Error("stream copy interrupted", "error", err)
	}
}

// cleanupForm releases the request-scoped temp files multipart parsing may
// have staged, on every exit path.
func (h *HttpHandler) cleanupForm(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		h.logger.Error("failed to remove multipart temp files", "error", err)
	}
}

func (h *HttpHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *HttpHandler) writeError(w http.ResponseWriter, err error) {
	var ve *apperror.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case apperror.IsTransfer(err):
		status = http.StatusBadGateway
	case apperror.IsConsistency(err):
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		h.logger.Error("request failed", "status", status, "error", err)
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CorsMiddleware allows the admin and user portals to call the API from
// another origin.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Range")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
