package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/repositories"
	"github.com/MuhammadAbdiel/aora-app/internal/storage"
)

const (
	// DefaultMaxUploadBytes bounds a single file upload.
	DefaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
)

// FileHandler serves bucket files.
type FileHandler struct {
	Files          FileStore
	Objects        ObjectStore
	Sessions       SessionManager
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// Create handles POST /v1/storage/buckets/{bucketId}/files. The body is a multipart
// form with a fileId field and a file part.
func (h FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, ok := requireSession(w, r, h.Sessions)
	if !ok {
		return
	}

	bucketID := mux.Vars(r)["bucketId"]
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, api.TypeInvalidArgument, "file exceeds the maximum upload size")
			return
		}
		logger.Warn("invalid upload form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile("file")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "file is required")
		return
	}
	defer part.Close()

	file := models.File{
		ID:        remote.ResolveID(r.FormValue("fileId")),
		BucketID:  bucketID,
		AccountID: session.AccountID,
		Name:      header.Filename,
		MimeType:  detectMimeType(header.Header.Get("Content-Type"), header.Filename),
		Size:      header.Size,
		CreatedAt: h.now(),
	}
	key := repositories.ObjectKey(file.BucketID, file.ID)

	if _, err := h.Files.Find(ctx, file.BucketID, file.ID); err == nil {
		respondError(ctx, w, http.StatusConflict, api.TypeConflict, "A storage file with the requested ID already exists.")
		return
	}

	if err := h.Objects.Put(ctx, key, file.MimeType, part, file.Size); err != nil {
		logger.Error("object upload failed", "error", err, "key", key)
		respondInternal(ctx, w, "failed to store file")
		return
	}

	if err := h.Files.Create(ctx, file); err != nil {
		h.discardObject(ctx, key)
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, api.TypeConflict, "A storage file with the requested ID already exists.")
			return
		}
		logger.Error("file record failed", "error", err, "fileId", file.ID)
		respondInternal(ctx, w, "failed to record file")
		return
	}

	logger.Info("file uploaded", "bucketId", file.BucketID, "fileId", file.ID, "size", file.Size)
	respondJSON(ctx, w, http.StatusCreated, api.NewFile(file))
}

// Delete handles DELETE /v1/storage/buckets/{bucketId}/files/{fileId}. Only the
// account that uploaded a file may delete it; other callers see not found.
func (h FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, ok := requireSession(w, r, h.Sessions)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	bucketID, fileID := vars["bucketId"], vars["fileId"]

	file, err := h.Files.Find(ctx, bucketID, fileID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondFileNotFound(ctx, w)
			return
		}
		logger.Error("file lookup failed", "error", err, "fileId", fileID)
		respondInternal(ctx, w, "failed to delete file")
		return
	}
	if file.AccountID != session.AccountID {
		logger.Warn("file delete denied", "fileId", fileID, "accountId", session.AccountID)
		respondFileNotFound(ctx, w)
		return
	}

	if err := h.Files.Delete(ctx, bucketID, fileID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondFileNotFound(ctx, w)
			return
		}
		logger.Error("file delete failed", "error", err, "fileId", fileID)
		respondInternal(ctx, w, "failed to delete file")
		return
	}

	h.discardObject(ctx, repositories.ObjectKey(bucketID, fileID))
	logger.Info("file deleted", "bucketId", bucketID, "fileId", fileID)
	w.WriteHeader(http.StatusNoContent)
}

// View handles GET /v1/storage/buckets/{bucketId}/files/{fileId}/view.
func (h FileHandler) View(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r)
}

// Preview handles GET /v1/storage/buckets/{bucketId}/files/{fileId}/preview. Images are
// served as stored; width, height, gravity and quality are accepted but not applied.
func (h FileHandler) Preview(w http.ResponseWriter, r *http.Request) {
	for _, param := range []string{"width", "height", "quality"} {
		if v := r.URL.Query().Get(param); v != "" {
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				respondError(r.Context(), w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid "+param)
				return
			}
		}
	}
	h.serve(w, r)
}

func (h FileHandler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	vars := mux.Vars(r)

	file, err := h.Files.Find(ctx, vars["bucketId"], vars["fileId"])
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondFileNotFound(ctx, w)
			return
		}
		logger.Error("file lookup failed", "error", err)
		respondInternal(ctx, w, "failed to load file")
		return
	}

	key := repositories.ObjectKey(file.BucketID, file.ID)
	if public, ok := h.Objects.(publicURLer); ok {
		if location, ok := public.PublicURL(key); ok {
			http.Redirect(w, r, location, http.StatusFound)
			return
		}
	}

	body, err := h.Objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Warn("file contents missing", "key", key)
			respondFileNotFound(ctx, w)
			return
		}
		logger.Error("object read failed", "error", err, "key", key)
		respondInternal(ctx, w, "failed to read file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.Name}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("stream file interrupted", "error", err, "key", key)
	}
}

func (h FileHandler) discardObject(ctx context.Context, key string) {
	if err := h.Objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		logging.FromContext(ctx).Error("object cleanup failed", "error", err, "key", key)
	}
}

func respondFileNotFound(ctx context.Context, w http.ResponseWriter) {
	respondError(ctx, w, http.StatusNotFound, api.TypeNotFound, "The requested file could not be found.")
}

var knownMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func detectMimeType(declared, name string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(name))
	if known, ok := knownMimeTypes[ext]; ok {
		return known
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func (h FileHandler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (h FileHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
