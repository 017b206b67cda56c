// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/handler"
	"bents-assistant-go/internal/middleware"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/pipeline"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/internal/service"
	"bents-assistant-go/pkg/database"
	"bents-assistant-go/pkg/embedding"
	"bents-assistant-go/pkg/es"
	"bents-assistant-go/pkg/kafka"
	"bents-assistant-go/pkg/llm"
	"bents-assistant-go/pkg/log"
	"bents-assistant-go/pkg/storage"
	"bents-assistant-go/pkg/tika"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 加载 .env 与配置文件，环境变量覆盖文件中的值
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据库、Redis、MinIO 和 Elasticsearch
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN, &model.Product{}, &model.Contact{}, &model.TranscriptUpload{})
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	rdb, err := database.NewRedis(rootCtx, cfg.Database.Redis)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	defer rdb.Close()
	store, err := storage.NewMinioStore(rootCtx, cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("Elasticsearch 初始化失败", err)
	}
	for _, topic := range cfg.Chat.Topics {
		if err := esClient.EnsureIndex(rootCtx, cfg.Elasticsearch.IndexName(topic), cfg.Embedding.Dimensions); err != nil {
			log.Fatal("创建话题索引失败", err)
		}
	}

	// 4. 初始化 Repository
	productRepo := repository.NewProductRepository(db)
	contactRepo := repository.NewContactRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	var embeddingCache repository.EmbeddingCacheRepository
	if cfg.EmbeddingCache.TTL > 0 {
		embeddingCache = repository.NewEmbeddingCacheRepository(rdb, cfg.EmbeddingCache.TTL)
	}

	// 5. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	tikaClient := tika.NewClient(cfg.Tika)
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	relevanceService := service.NewRelevanceService(llmClient)
	retrievalService := service.NewRetrievalService(embeddingClient, embeddingCache, esClient, cfg)
	answerService := service.NewAnswerService(llmClient, cfg.LLM.Prompt.Rules, service.NewRetryPolicy(cfg.Chat.Retry))
	productService := service.NewProductService(productRepo, cfg.Products)
	chatService := service.NewChatService(relevanceService, retrievalService, answerService, productService, cfg.Chat)
	uploadService := service.NewUploadService(store, uploadRepo, producer, cfg.Chat)
	contactService := service.NewContactService(contactRepo)

	// 6. 启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(store, tikaClient, embeddingClient, esClient, uploadRepo, cfg)
	consumer := kafka.NewConsumer(cfg.Kafka, rdb, cfg.Ingest.MaxAttempts)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Start(rootCtx, processor)
	}()

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigins))

	chatHandler := handler.NewChatHandler(chatService, cfg.Chat, cfg.Server.AllowedOrigins)
	productHandler := handler.NewProductHandler(productService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	contactHandler := handler.NewContactHandler(contactService)

	r.GET("/health", handler.Health)
	r.POST("/chat", chatHandler.Chat)
	r.GET("/chat/ws", chatHandler.Handle)
	r.GET("/documents", productHandler.List)
	r.POST("/add_document", productHandler.Add)
	r.POST("/update_document", productHandler.Update)
	r.POST("/delete_document", productHandler.Delete)
	r.POST("/upload_document", uploadHandler.Upload)
	r.GET("/uploads", uploadHandler.List)
	r.POST("/contact", contactHandler.Submit)
	api := r.Group("/api")
	{
		api.GET("/products", productHandler.List)
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 等待消费者处理完当前消息
	wg.Wait()
	log.Info("服务已优雅关闭")
}
