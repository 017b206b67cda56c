package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChatService struct{ mock.Mock }

func (m *mockChatService) HandleTurn(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*model.ChatResponse)
	return v, args.Error(1)
}

type mockProductService struct{ mock.Mock }

func (m *mockProductService) Correlate(ctx context.Context, videoTitle string) ([]model.Product, error) {
	args := m.Called(ctx, videoTitle)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProductService) List(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProductService) Create(ctx context.Context, in service.ProductInput) (*model.Product, error) {
	args := m.Called(ctx, in)
	v, _ := args.Get(0).(*model.Product)
	return v, args.Error(1)
}

func (m *mockProductService) Update(ctx context.Context, id string, in service.ProductInput) (*model.Product, error) {
	args := m.Called(ctx, id, in)
	v, _ := args.Get(0).(*model.Product)
	return v, args.Error(1)
}

func (m *mockProductService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockUploadService struct{ mock.Mock }

func (m *mockUploadService) Upload(ctx context.Context, in service.UploadInput) (*model.TranscriptUpload, error) {
	args := m.Called(ctx, in)
	v, _ := args.Get(0).(*model.TranscriptUpload)
	return v, args.Error(1)
}

func (m *mockUploadService) List(ctx context.Context, topic string) ([]model.TranscriptUpload, error) {
	args := m.Called(ctx, topic)
	v, _ := args.Get(0).([]model.TranscriptUpload)
	return v, args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func chatRouter(svc service.ChatService) (*gin.Engine, *ChatHandler) {
	h := NewChatHandler(svc, config.ChatConfig{TurnTimeout: time.Second}, []string{"https://bents.example"})
	r := gin.New()
	r.POST("/chat", h.Chat)
	r.GET("/chat/ws", h.Handle)
	return r, h
}

func TestChatReturnsResponse(t *testing.T) {
	svc := &mockChatService{}
	want := model.NewCannedResponse("hello")
	svc.On("HandleTurn", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), model.ChatRequest{Message: "hi", SelectedIndex: "bents", ChatHistory: []string{"a", "b"}}).Return(want, nil).Once()

	r, _ := chatRouter(svc)
	w := postJSON(r, "/chat", `{"message":"hi","selected_index":"bents","chat_history":["a","b"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hello", got["response"])
	assert.Contains(t, got, "video_links")
	assert.Contains(t, got, "related_products")
	svc.AssertExpectations(t)
}

func TestChatFailureHidesPartialAnswer(t *testing.T) {
	svc := &mockChatService{}
	svc.On("HandleTurn", mock.Anything, mock.Anything).Return(nil, &service.GenerationError{Kind: service.ErrNoResponse, Attempts: 3})

	r, _ := chatRouter(svc)
	w := postJSON(r, "/chat", `{"message":"q","selected_index":"bents"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An error occurred processing your request"}`, w.Body.String())

	w = postJSON(r, "/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatWebsocket(t *testing.T) {
	svc := &mockChatService{}
	svc.On("HandleTurn", mock.Anything, mock.MatchedBy(func(req model.ChatRequest) bool { return req.Message == "ok" })).
		Return(model.NewCannedResponse("fine"), nil)
	svc.On("HandleTurn", mock.Anything, mock.MatchedBy(func(req model.ChatRequest) bool { return req.Message == "boom" })).
		Return(nil, errors.New("es down"))

	r, _ := chatRouter(svc)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]interface{} {
		var m map[string]interface{}
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	require.NoError(t, conn.WriteJSON(model.ChatRequest{Message: "ok", SelectedIndex: "bents"}))
	assert.Equal(t, "fine", read()["response"])
	assert.Equal(t, "completion", read()["type"])

	require.NoError(t, conn.WriteJSON(model.ChatRequest{Message: "boom", SelectedIndex: "bents"}))
	assert.Equal(t, chatErrorMessage, read()["error"])
	assert.Equal(t, "completion", read()["type"])
}

func TestWebsocketOriginCheck(t *testing.T) {
	check := originChecker([]string{"https://bents.example"})
	req := httptest.NewRequest(http.MethodGet, "/chat/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://bents.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestTagListAcceptsStringOrArray(t *testing.T) {
	var req ProductRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","tags":"Glue Up, Clamps"}`), &req))
	assert.Equal(t, TagList{"Glue Up", " Clamps"}, req.Tags)
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","tags":["A","B"]}`), &req))
	assert.Equal(t, TagList{"A", "B"}, req.Tags)
	assert.Error(t, json.Unmarshal([]byte(`{"tags":5}`), &req))
}

func TestProductRoutes(t *testing.T) {
	svc := &mockProductService{}
	h := NewProductHandler(svc)
	r := gin.New()
	r.GET("/documents", h.List)
	r.POST("/add_document", h.Add)
	r.POST("/update_document", h.Update)
	r.POST("/delete_document", h.Delete)

	svc.On("List", mock.Anything).Return([]model.Product{{ID: "p1", Title: "Clamp"}}, nil).Once()
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Clamp"`)

	svc.On("Create", mock.Anything, service.ProductInput{Title: "Clamp", Tags: []string{"Glue Up"}, Link: "l"}).
		Return(&model.Product{ID: "new"}, nil).Once()
	w = postJSON(r, "/add_document", `{"title":"Clamp","tags":"Glue Up","link":"l"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	svc.On("Update", mock.Anything, "missing", mock.Anything).Return(nil, service.ErrProductNotFound).Once()
	w = postJSON(r, "/update_document", `{"id":"missing","title":"x","tags":["y"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.On("Delete", mock.Anything, "").Return(service.ErrInvalidInput).Once()
	w = postJSON(r, "/delete_document", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestUploadRoute(t *testing.T) {
	svc := &mockUploadService{}
	svc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.FileName == "glue.docx" && in.Topic == "bents" && in.VideoURL == "https://youtu.be/g" && in.Size == 4
	})).Return(&model.TranscriptUpload{ID: 1}, nil).Once()

	h := NewUploadHandler(svc)
	r := gin.New()
	r.POST("/upload_document", h.Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "glue.docx")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("PK.."))
	require.NoError(t, mw.WriteField("index_name", "bents"))
	require.NoError(t, mw.WriteField("video_url", "https://youtu.be/g"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload_document", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	req = httptest.NewRequest(http.MethodPost, "/upload_document", strings.NewReader(""))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
