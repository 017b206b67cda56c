package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bents-assistant-go/internal/service"
	"bents-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// TagList 接受逗号分隔的字符串或字符串数组两种写法。
type TagList []string

// UnmarshalJSON 实现 json.Unmarshaler。
func (t *TagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = strings.Split(s, ",")
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = list
	return nil
}

// ProductRequest 是新增和修改产品的请求体。
type ProductRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Tags     TagList `json:"tags"`
	Link     string  `json:"link"`
	ImageURL *string `json:"image_url"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{Title: r.Title, Tags: r.Tags, Link: r.Link, ImageURL: r.ImageURL}
}

// ProductHandler 负责产品目录的管理接口。
type ProductHandler struct {
	productService service.ProductService
}

// NewProductHandler 创建一个新的 ProductHandler 实例。
func NewProductHandler(productService service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List 处理 GET /documents 和 GET /api/products。
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.productService.List(c.Request.Context())
	if err != nil {
		log.Error("ListProducts: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取产品列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "获取产品列表成功", "data": products})
}

// Add 处理 POST /add_document。
func (h *ProductHandler) Add(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	product, err := h.productService.Create(c.Request.Context(), req.input())
	if err != nil {
		writeProductError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "产品添加成功", "data": product})
}

// Update 处理 POST /update_document。
func (h *ProductHandler) Update(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	product, err := h.productService.Update(c.Request.Context(), req.ID, req.input())
	if err != nil {
		writeProductError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "产品更新成功", "data": product})
}

type deleteProductRequest struct {
	ID string `json:"id"`
}

// Delete 处理 POST /delete_document。
func (h *ProductHandler) Delete(c *gin.Context) {
	var req deleteProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	if err := h.productService.Delete(c.Request.Context(), req.ID); err != nil {
		writeProductError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "产品删除成功", "data": nil})
}

func writeProductError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "产品不存在", "data": nil})
	default:
		log.Errorf("[ProductHandler] 操作产品失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
	}
}
