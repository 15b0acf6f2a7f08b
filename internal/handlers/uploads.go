package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/services"
)

// UploadHandlers serves the design file upload endpoints.
type UploadHandlers struct {
	uploads  services.UploadService
	maxBytes int64
}

// NewUploadHandlers constructs upload handlers. maxBytes bounds the multipart
// body; zero falls back to the service default.
func NewUploadHandlers(uploads services.UploadService, maxBytes int64) (*UploadHandlers, error) {
	if uploads == nil {
		return nil, errors.New("upload handlers: upload service is required")
	}
	if maxBytes <= 0 {
		maxBytes = services.DefaultMaxUploadBytes
	}
	return &UploadHandlers{uploads: uploads, maxBytes: maxBytes}, nil
}

// RegisterMe mounts the owner-scoped upload routes.
func (h *UploadHandlers) RegisterMe(r chi.Router) {
	r.Post("/uploads", h.uploadDesign)
	r.Delete("/uploads/{fileID}", h.deleteDesign)
}

func (h *UploadHandlers) uploadDesign(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	// The multipart envelope adds headers on top of the file itself, so the
	// request limit leaves headroom over the per-file limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeServiceError(r.Context(), w, services.ErrFileTooLarge)
			return
		}
		writeServiceError(r.Context(), w, services.ValidationErrorf("request is not valid multipart form data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(r.Context(), w, services.ValidationErrorf("multipart field %q is required", "file"))
		return
	}
	defer file.Close()

	design, err := h.uploads.UploadDesign(r.Context(), services.UploadDesignCommand{
		UserID:      identity.UID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, map[string]any{
		"file_id":      design.FileID,
		"url":          design.URL,
		"object_name":  design.ObjectName,
		"size":         design.Size,
		"content_type": design.ContentType,
	})
}

func (h *UploadHandlers) deleteDesign(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	if err := h.uploads.DeleteDesign(r.Context(), identity.UID, chi.URLParam(r, "fileID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
