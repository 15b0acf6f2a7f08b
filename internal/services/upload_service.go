package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwell-press/api/internal/platform/storage"
)

var (
	errUploadStorageRequired = errors.New("upload service: storage client is required")

	// ErrInvalidFileType indicates the design file type is not accepted.
	ErrInvalidFileType = errors.New("upload service: invalid file type")
	// ErrFileTooLarge indicates the design file exceeds the size ceiling.
	ErrFileTooLarge = errors.New("upload service: file too large")
)

// DefaultMaxUploadBytes caps design uploads at 10 MB.
const DefaultMaxUploadBytes = 10 << 20

// allowedDesignTypes is the design file MIME allow-list: common raster and
// vector image formats plus the print-shop document formats.
var allowedDesignTypes = map[string]struct{}{
	"image/png":                         {},
	"image/jpeg":                        {},
	"image/webp":                        {},
	"image/gif":                         {},
	"image/svg+xml":                     {},
	"application/pdf":                   {},
	"application/postscript":            {},
	"application/illustrator":           {},
	"image/vnd.adobe.photoshop":         {},
	"application/x-photoshop":           {},
	"application/vnd.adobe.photoshop":   {},
	"application/vnd.adobe.illustrator": {},
}

// DesignWriter is the object-store surface the upload service depends on.
type DesignWriter interface {
	Upload(ctx context.Context, object, contentType string, content io.Reader) (storage.ObjectInfo, error)
	Delete(ctx context.Context, object string) error
}

// UploadServiceDeps wires the storage client for design uploads.
type UploadServiceDeps struct {
	Storage     DesignWriter
	PathPrefix  string
	MaxBytes    int64
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
}

type uploadService struct {
	storage  DesignWriter
	prefix   string
	maxBytes int64
	now      func() time.Time
	logger   Logger
	newID    func() string
}

// NewUploadService constructs an UploadService enforcing dependency validation.
func NewUploadService(deps UploadServiceDeps) (UploadService, error) {
	if deps.Storage == nil {
		return nil, errUploadStorageRequired
	}
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return &uploadService{
		storage:  deps.Storage,
		prefix:   strings.TrimSpace(deps.PathPrefix),
		maxBytes: maxBytes,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		newID:    idGen,
	}, nil
}

// UploadDesign validates and stores a design file. Type and size are rejected
// before any byte reaches the bucket.
func (s *uploadService) UploadDesign(ctx context.Context, cmd UploadDesignCommand) (UploadedDesign, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UploadedDesign{}, ErrAuthenticationRequired
	}
	if cmd.Content == nil {
		return UploadedDesign{}, ValidationErrorf("design file content is required")
	}

	contentType := normaliseContentType(cmd.ContentType)
	if _, ok := allowedDesignTypes[contentType]; !ok {
		return UploadedDesign{}, fmt.Errorf("%w: %s", ErrInvalidFileType, contentType)
	}
	if cmd.Size > s.maxBytes {
		return UploadedDesign{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, cmd.Size, s.maxBytes)
	}

	fileID := s.newID()
	object, err := storage.BuildDesignPath(storage.DesignPathParams{
		Prefix:   s.prefix,
		UserID:   userID,
		FileID:   fileID,
		FileName: cmd.FileName,
	})
	if err != nil {
		return UploadedDesign{}, ValidationErrorf("design file name is invalid: %v", err)
	}

	// The declared size is advisory; the limit reader enforces the ceiling on
	// the actual stream.
	limited := io.LimitReader(cmd.Content, s.maxBytes+1)
	info, err := s.storage.Upload(ctx, object, contentType, limited)
	if err != nil {
		return UploadedDesign{}, fmt.Errorf("upload service: store design: %w", err)
	}
	if info.Size > s.maxBytes {
		if deleteErr := s.storage.Delete(ctx, object); deleteErr != nil {
			s.logger(ctx, "upload.oversize_cleanup_failed", map[string]any{
				"object": object,
				"error":  deleteErr.Error(),
			})
		}
		return UploadedDesign{}, fmt.Errorf("%w: stream exceeded %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	// The returned file ID carries the stored extension so a later delete can
	// recompose the exact object key.
	if idx := strings.LastIndex(object, "/"); idx >= 0 {
		fileID = object[idx+1:]
	}

	s.logger(ctx, "upload.design.stored", map[string]any{
		"userId": userID,
		"fileId": fileID,
		"object": info.Name,
		"bytes":  info.Size,
	})

	return UploadedDesign{
		FileID:      fileID,
		URL:         info.PublicURL,
		ObjectName:  info.Name,
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

// DeleteDesign removes a previously uploaded design file. The object key is
// recomposed from the owner and file ID, so users cannot reach outside their
// own prefix.
func (s *uploadService) DeleteDesign(ctx context.Context, userID string, fileID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrAuthenticationRequired
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return ValidationErrorf("file id is required")
	}

	// The file ID may carry the stored extension, e.g. "01hx...z3.png";
	// splitting it reproduces the object key the upload composed.
	base := fileID
	fileName := ""
	if idx := strings.LastIndex(fileID, "."); idx > 0 {
		base = fileID[:idx]
		fileName = fileID
	}
	object, err := storage.BuildDesignPath(storage.DesignPathParams{
		Prefix:   s.prefix,
		UserID:   userID,
		FileID:   base,
		FileName: fileName,
	})
	if err != nil {
		return ValidationErrorf("file id is invalid: %v", err)
	}
	if err := s.storage.Delete(ctx, object); err != nil {
		return fmt.Errorf("upload service: delete design: %w", err)
	}
	s.logger(ctx, "upload.design.deleted", map[string]any{
		"userId": userID,
		"fileId": fileID,
	})
	return nil
}

func normaliseContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
