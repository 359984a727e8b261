package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/storage"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/middleware"
)

// UploadHandler stores images for the content editors.
type UploadHandler struct {
	store    storage.Store
	maxBytes int64
}

func NewUploadHandler(store storage.Store, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &UploadHandler{store: store, maxBytes: maxBytes}
}

func (h *UploadHandler) Register(r gin.IRouter) {
	r.POST("/api/v1/uploads", h.Upload)
	r.GET(storage.FileRoute+"*key", h.Serve)
}

// Upload accepts multipart field "file" and an optional "kind" naming the
// folder, and returns {url, key}.
func (h *UploadHandler) Upload(c *gin.Context) {
	if !middleware.ActorFrom(c).Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' required"})
		return
	}
	if fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	key, ok := storage.NewKey(c.PostForm("kind"), fh.Filename)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only jpg, png, gif and webp images are accepted"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file content is not an image"})
		return
	}
	url, err := h.store.Put(c.Request.Context(), key, io.MultiReader(bytes.NewReader(head), f), fh.Size, ct)
	if err != nil {
		logger.Errorf("uploads: put %s: %v", key, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "key": key})
}

// Serve streams an uploaded object.
func (h *UploadHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	rc, ct, err := h.store.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		logger.Errorf("uploads: open %s: %v", key, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, ct, rc, nil)
}
