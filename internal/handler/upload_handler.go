package handler

import (
	"errors"
	"net/http"

	"bents-assistant-go/internal/service"
	"bents-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理文稿上传相关的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理 POST /upload_document，表单字段为 file、index_name 和可选的 video_url。
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少上传文件", "data": nil})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: failed to open multipart file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
		return
	}
	defer file.Close()

	record, err := h.uploadService.Upload(c.Request.Context(), service.UploadInput{
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Reader:   file,
		Topic:    c.PostForm("index_name"),
		VideoURL: c.PostForm("video_url"),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
			return
		}
		log.Errorf("[UploadHandler] 上传文稿失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文稿已上传, 正在后台处理", "data": record})
}

// List 处理 GET /uploads?index_name=。
func (h *UploadHandler) List(c *gin.Context) {
	records, err := h.uploadService.List(c.Request.Context(), c.Query("index_name"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
			return
		}
		log.Error("ListUploads: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取上传记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "获取上传记录成功", "data": records})
}
