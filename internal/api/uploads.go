package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playerhub/internal/models"
)

const maxUploadSize = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type uploadResponse struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// HandleUpload stores the multipart "image" field under the upload directory. The
// returned markdown, sent as a chat message, is tagged as an image by the relay.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Upload must be a multipart form under 5MB")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing image field")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Image is larger than 5MB")
		return
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeError(w, http.StatusBadRequest, "Could not read image")
		return
	}
	ext, ok := imageExtensions[http.DetectContentType(head[:n])]
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "Only png, jpeg, gif and webp images are accepted")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.fail(w, r, fmt.Errorf("failed to rewind upload: %w", err))
		return
	}

	name := uuid.NewString() + ext
	if err := h.saveUpload(name, file); err != nil {
		h.fail(w, r, err)
		return
	}

	url := "/uploads/" + name
	h.logger.Info("image uploaded",
		zap.Int64("user_id", currentUser(r)),
		zap.String("file", name),
		zap.Int64("size", header.Size))
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url, Markdown: models.ImageMarkdown(url)})
}

func (h *Handlers) saveUpload(name string, src io.Reader) error {
	if err := os.MkdirAll(h.opts.UploadDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(h.opts.UploadDir, name))
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write upload: %w", err)
	}
	return dst.Close()
}
