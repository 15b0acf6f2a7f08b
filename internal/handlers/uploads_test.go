package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

func multipartDesign(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadDesignStoresFile(t *testing.T) {
	router, stubs := newTestRouter(t, nil)

	body, contentType := multipartDesign(t, "file", "band-logo.png", "image/png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/uploads", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if stubs.uploads.uploaded == nil {
		t.Fatal("expected the upload to reach the service")
	}
	if stubs.uploads.uploaded.UserID != "user-1" {
		t.Fatalf("expected the identity UID, got %q", stubs.uploads.uploaded.UserID)
	}
	if stubs.uploads.uploaded.FileName != "band-logo.png" {
		t.Fatalf("unexpected filename %q", stubs.uploads.uploaded.FileName)
	}
	if stubs.uploads.uploaded.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", stubs.uploads.uploaded.ContentType)
	}

	var payload struct {
		FileID string `json:"file_id"`
		URL    string `json:"url"`
	}
	decodeBody(t, rec, &payload)
	if payload.FileID == "" || payload.URL == "" {
		t.Fatalf("expected file_id and url in response: %+v", payload)
	}
}

func TestUploadDesignMissingFileField(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	body, contentType := multipartDesign(t, "attachment", "band-logo.png", "image/png", []byte("png bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/uploads", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadDesignRequiresMultipart(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/uploads", bytes.NewReader([]byte("raw bytes")))
	req.Header.Set("Content-Type", "application/octet-stream")

	rec := doRequest(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteDesign(t *testing.T) {
	router, stubs := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/me/uploads/01hxfileid.png", nil)
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(stubs.uploads.deleted) != 1 || stubs.uploads.deleted[0] != "01hxfileid.png" {
		t.Fatalf("expected the delete to reach the service, got %v", stubs.uploads.deleted)
	}
}
