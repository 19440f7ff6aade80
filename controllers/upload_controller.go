package controllers

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/response"
	"github.com/dishevent/dishevent-server/uploads"
)

const maxUploadBytes = 10 << 20

type UploadController struct {
	uploader *uploads.Uploader
}

// nil uploader: storage chưa cấu hình, mọi endpoint trả 503
func NewUploadController(uploader *uploads.Uploader) *UploadController {
	return &UploadController{uploader: uploader}
}

func (h *UploadController) available(c *gin.Context) bool {
	if h.uploader == nil {
		response.Abort(c, response.ErrCodeServiceUnavail, "file storage is not configured")
		return false
	}
	return true
}

func ownerDir(userID string) string {
	return "events/" + userID
}

// POST /api/uploads (multipart: file, optional dir and name)
func (h *UploadController) Upload(c *gin.Context) {
	if !h.available(c) {
		return
	}
	actor := middleware.CurrentIdentity(c)
	// Giới hạn kích thước file (10MB)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing file")
		return
	}
	if fh.Size == 0 {
		respondError(c, uploads.ErrEmptyFile)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	name := c.PostForm("name")
	if name != "" {
		name = path.Base(name)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	log := logger.WithContext(c.Request.Context())
	res, err := h.uploader.Upload(c.Request.Context(), uploads.Request{
		Dir:         ownerDir(actor.UserID) + "/" + strings.Trim(path.Clean("/"+c.PostForm("dir")), "/"),
		Name:        name,
		Filename:    fh.Filename,
		File:        f,
		Size:        fh.Size,
		ContentType: contentType,
		OnProgress: func(p uploads.Progress) {
			log.Debug("upload progress", zap.String("state", string(p.State)), zap.Int("percent", p.Percent))
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, res)
}

// DELETE /api/uploads?url=...
func (h *UploadController) Delete(c *gin.Context) {
	if !h.available(c) {
		return
	}
	raw := c.Query("url")
	_, objectPath, err := uploads.ParseObjectURL(raw)
	if err != nil {
		respondError(c, err)
		return
	}
	// Chỉ xoá file của chính mình
	actor := middleware.CurrentIdentity(c)
	if !strings.HasPrefix(objectPath, ownerDir(actor.UserID)+"/") {
		response.Abort(c, response.ErrCodeForbidden, "you can only delete your own files")
		return
	}

	deleted, err := h.uploader.Delete(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// GET /v0/b/:bucket/o/*object redirects to the storage URL.
func (h *UploadController) Download(c *gin.Context) {
	if !h.available(c) {
		return
	}
	objectPath := strings.TrimPrefix(c.Param("object"), "/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		response.Abort(c, response.ErrCodeNotFound, "file not found")
		return
	}
	target, err := h.uploader.Resolve(c.Request.Context(), c.Param("bucket"), objectPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}
