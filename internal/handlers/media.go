package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Ex1s9/microservices/internal/services"
	"github.com/Ex1s9/microservices/internal/storage"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 32 << 20
	maxMediaBytes      = 64 << 20
	formFieldFile      = "file"
)

// MediaHandler stores uploaded cover images and screenshots in object
// storage and hands keys back for use in game fields.
type MediaHandler struct {
	storage     *storage.Storage
	userService *services.UserService
}

func NewMediaHandler(store *storage.Storage, userService *services.UserService) *MediaHandler {
	return &MediaHandler{storage: store, userService: userService}
}

// MediaRouter registers media routes. Uploads require an authenticated
// developer; downloads are public.
func MediaRouter(
	r chi.Router,
	store *storage.Storage,
	gameService *services.GameService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewMediaHandler(store, userService)
	gameHandler := NewGameHandler(gameService, userService)

	r.With(authMiddleware, gameHandler.requireDeveloper).Post("/", handler.Upload)
	r.Get("/*", handler.Download)
}

// MediaResponse carries the object key of an uploaded file.
type MediaResponse struct {
	Key string `json:"key"`
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	filename, data, contentType, err := parseMediaFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.storage.PutMedia(r.Context(), filename, data, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store media")
		return
	}

	writeJSON(w, http.StatusCreated, MediaResponse{Key: key})
}

func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing media key")
		return
	}

	reader, err := h.storage.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	defer reader.Close()

	if _, err := io.Copy(w, reader); err != nil {
		return
	}
}

func parseMediaFile(form *multipart.Form) (string, []byte, string, error) {
	if form == nil {
		return "", nil, "", errors.New("missing form data")
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return "", nil, "", errors.New("file is required")
	}
	if len(files) > 1 {
		return "", nil, "", errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, "", errors.New("failed to read upload")
	}

	data, err := readFileLimited(file, maxMediaBytes)
	_ = file.Close()
	if err != nil {
		return "", nil, "", err
	}

	return fileHeader.Filename, data, fileHeader.Header.Get("Content-Type"), nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
