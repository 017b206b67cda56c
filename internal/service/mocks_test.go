package service

import (
	"context"
	"io"
	"strings"

	"bents-assistant-go/internal/model"
	"bents-assistant-go/pkg/llm"
	"bents-assistant-go/pkg/tasks"

	"github.com/stretchr/testify/mock"
)

type mockLLM struct{ mock.Mock }

func (m *mockLLM) Chat(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	args := m.Called(ctx, messages, gen)
	return args.String(0), args.Error(1)
}

type mockEmbedding struct{ mock.Mock }

func (m *mockEmbedding) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *mockEmbedding) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) KNNSearch(ctx context.Context, indexName string, vector []float32, k int) ([]model.TranscriptChunk, error) {
	args := m.Called(ctx, indexName, vector, k)
	v, _ := args.Get(0).([]model.TranscriptChunk)
	return v, args.Error(1)
}

type mockEmbeddingCache struct{ mock.Mock }

func (m *mockEmbeddingCache) Get(ctx context.Context, modelName, text string) ([]float32, error) {
	args := m.Called(ctx, modelName, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *mockEmbeddingCache) Set(ctx context.Context, modelName, text string, vector []float32) error {
	return m.Called(ctx, modelName, text, vector).Error(0)
}

type mockProductRepo struct{ mock.Mock }

func (m *mockProductRepo) List(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.Product)
	return v, args.Error(1)
}

func (m *mockProductRepo) FindByTagSubstring(ctx context.Context, title string, limit int) ([]model.Product, error) {
	args := m.Called(ctx, title, limit)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProductRepo) Create(ctx context.Context, product *model.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) Update(ctx context.Context, product *model.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockRelevance struct{ mock.Mock }

func (m *mockRelevance) Classify(ctx context.Context, query string, history []model.HistoryPair) (Label, error) {
	args := m.Called(ctx, query, history)
	return args.Get(0).(Label), args.Error(1)
}

type mockRetrieval struct{ mock.Mock }

func (m *mockRetrieval) Retrieve(ctx context.Context, topic, query string, k int) ([]model.TranscriptChunk, error) {
	args := m.Called(ctx, topic, query, k)
	v, _ := args.Get(0).([]model.TranscriptChunk)
	return v, args.Error(1)
}

type mockProducts struct{ mock.Mock }

func (m *mockProducts) Correlate(ctx context.Context, videoTitle string) ([]model.Product, error) {
	args := m.Called(ctx, videoTitle)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProducts) List(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]model.Product)
	return v, args.Error(1)
}

func (m *mockProducts) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	args := m.Called(ctx, in)
	v, _ := args.Get(0).(*model.Product)
	return v, args.Error(1)
}

func (m *mockProducts) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	args := m.Called(ctx, id, in)
	v, _ := args.Get(0).(*model.Product)
	return v, args.Error(1)
}

func (m *mockProducts) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	return m.Called(ctx, objectName, reader, size, contentType).Error(0)
}

func (m *mockObjectStore) GetObject(ctx context.Context, objectName string) ([]byte, error) {
	args := m.Called(ctx, objectName)
	v, _ := args.Get(0).([]byte)
	return v, args.Error(1)
}

type mockUploadRepo struct{ mock.Mock }

func (m *mockUploadRepo) Create(ctx context.Context, record *model.TranscriptUpload) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockUploadRepo) FindByID(ctx context.Context, id uint) (*model.TranscriptUpload, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*model.TranscriptUpload)
	return v, args.Error(1)
}

func (m *mockUploadRepo) ListByTopic(ctx context.Context, topic string) ([]model.TranscriptUpload, error) {
	args := m.Called(ctx, topic)
	v, _ := args.Get(0).([]model.TranscriptUpload)
	return v, args.Error(1)
}

func (m *mockUploadRepo) MarkIndexed(ctx context.Context, id uint, title string, chunkCount int) error {
	return m.Called(ctx, id, title, chunkCount).Error(0)
}

func (m *mockUploadRepo) UpdateStatus(ctx context.Context, id uint, status int) error {
	return m.Called(ctx, id, status).Error(0)
}

type mockProducer struct{ mock.Mock }

func (m *mockProducer) ProduceTranscriptTask(ctx context.Context, task tasks.TranscriptTask) error {
	return m.Called(ctx, task).Error(0)
}

type mockContactRepo struct{ mock.Mock }

func (m *mockContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
