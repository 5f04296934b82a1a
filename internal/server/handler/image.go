package handler

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/nftstore/internal/domain"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// ImageHandler accepts listing image uploads.
type ImageHandler struct {
	store    Storefront
	maxBytes int64
	logger   *slog.Logger
}

// NewImageHandler creates an ImageHandler accepting files up to maxBytes.
func NewImageHandler(store Storefront, maxBytes int64, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{store: store, maxBytes: maxBytes, logger: logHandler(logger, "image")}
}

// Upload stores the multipart "image" field and returns its URI.
// POST /api/images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+sniffLen*2)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_input",
				fmt.Sprintf("image exceeds %d bytes", h.maxBytes))
			return
		}
		writeFailure(w, h.logger, r, fmt.Errorf("%w: image field: %v", domain.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_input",
			fmt.Sprintf("image exceeds %d bytes", h.maxBytes))
		return
	}

	body := bufio.NewReaderSize(file, sniffLen)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(sniffLen)
		contentType = http.DetectContentType(head)
	}

	uri, err := h.store.UploadImage(r.Context(), header.Filename, contentType, body)
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uri": uri})
}
