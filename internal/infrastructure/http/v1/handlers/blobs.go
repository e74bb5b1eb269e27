package handlers

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/infrastructure/blob"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// maxBlobSize caps a single upload at 25 MiB.
const maxBlobSize = 25 << 20

// BlobHandler accepts scan uploads for manual invoices.
type BlobHandler struct {
	*BaseHandler
	store *blob.FileStore
}

// NewBlobHandler creates a blob handler.
func NewBlobHandler(base *BaseHandler, store *blob.FileStore) *BlobHandler {
	return &BlobHandler{BaseHandler: base, store: store}
}

// Upload handles POST /blobs?filename=scan.pdf with a raw body. The
// returned URI goes into an invoice's scan reference.
func (h *BlobHandler) Upload(c *gin.Context) {
	fileName := filepath.Base(c.Query("filename"))
	if fileName == "" || fileName == "." || fileName == "/" {
		h.Error(c, apperror.NewValidation("filename query parameter is required").
			WithDetail("field", "filename"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlobSize+1))
	if err != nil {
		h.Error(c, apperror.NewValidation("failed to read request body"))
		return
	}
	if len(data) == 0 {
		h.Error(c, apperror.NewValidation("request body is empty"))
		return
	}
	if len(data) > maxBlobSize {
		h.Error(c, apperror.NewValidation("file exceeds the upload limit").
			WithDetail("limit_bytes", maxBlobSize))
		return
	}

	path := fmt.Sprintf("uploads/%s/%s", id.New(), fileName)
	uri, err := h.store.Put(c.Request.Context(), path, data)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.BlobResponse{URI: uri, Size: len(data)})
}
