package handler

import (
	"errors"
	"net/http"

	"bents-assistant-go/internal/service"
	"bents-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ContactRequest 是联系表单的请求体。
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactHandler 处理联系表单。
type ContactHandler struct {
	contactService service.ContactService
}

// NewContactHandler 创建一个新的 ContactHandler 实例。
func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// Submit 处理 POST /contact。
func (h *ContactHandler) Submit(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	contact, err := h.contactService.Submit(c.Request.Context(), service.ContactInput(req))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
			return
		}
		log.Errorf("[ContactHandler] 保存联系表单失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "提交成功", "data": contact})
}

// Health 处理 GET /health。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
