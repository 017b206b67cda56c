// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/service"
	"bents-assistant-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// chatErrorMessage 是生成失败或基础设施错误时返回给前端的统一提示，不包含任何部分回答。
const chatErrorMessage = "An error occurred processing your request"

// ChatHandler 负责处理对话请求，支持普通 HTTP 和 WebSocket 两种方式。
type ChatHandler struct {
	chatService service.ChatService
	turnTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。allowedOrigins 同时用于 WebSocket 的来源校验。
func NewChatHandler(chatService service.ChatService, cfg config.ChatConfig, allowedOrigins []string) *ChatHandler {
	h := &ChatHandler{chatService: chatService, turnTimeout: cfg.TurnTimeout}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *ChatHandler) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.turnTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.turnTimeout)
}

// Chat 处理 POST /chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	ctx, cancel := h.turnContext(c.Request.Context())
	defer cancel()

	resp, err := h.chatService.HandleTurn(ctx, req)
	if err != nil {
		log.Errorf("[ChatHandler] 处理对话失败, topic: %s, Error: %v", req.SelectedIndex, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": chatErrorMessage})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// completionNotice 在每一轮 WebSocket 回复之后发送。
func completionNotice() map[string]interface{} {
	now := time.Now()
	return map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
}

// Handle 处理 GET /chat/ws。每条文本消息是一个 ChatRequest，
// 回复一个 ChatResponse（出错时为 {"error": ...}），随后是完成通知。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, remote: %s", conn.RemoteAddr())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var reply interface{}
		var req model.ChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Warnf("[ChatHandler] 无法解析 WebSocket 消息: %v", err)
			reply = gin.H{"error": "无效的请求负载"}
		} else {
			ctx, cancel := h.turnContext(c.Request.Context())
			resp, err := h.chatService.HandleTurn(ctx, req)
			cancel()
			if err != nil {
				log.Errorf("[ChatHandler] 处理 WebSocket 对话失败: %v", err)
				reply = gin.H{"error": chatErrorMessage}
			} else {
				reply = resp
			}
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Warnf("写入 WebSocket 回复失败: %v", err)
			return
		}
		if err := conn.WriteJSON(completionNotice()); err != nil {
			log.Warnf("写入 WebSocket 完成通知失败: %v", err)
			return
		}
	}
}
