// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 它在启动时只加载一次，随后通过构造函数显式传入各个组件。
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Log            LogConfig            `mapstructure:"log"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Tika           TikaConfig           `mapstructure:"tika"`
	Elasticsearch  ElasticsearchConfig  `mapstructure:"elasticsearch"`
	MinIO          MinIOConfig          `mapstructure:"minio"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	EmbeddingCache EmbeddingCacheConfig `mapstructure:"embedding_cache"`
	LLM            LLMConfig            `mapstructure:"llm"`
	Chat           ChatConfig           `mapstructure:"chat"`
	Products       ProductsConfig       `mapstructure:"products"`
	Ingest         IngestConfig         `mapstructure:"ingest"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
// 每个话题对应一个索引，索引名为 IndexPrefix + 话题名。
type ElasticsearchConfig struct {
	Addresses   string `mapstructure:"addresses"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	IndexPrefix string `mapstructure:"index_prefix"`
}

// IndexName 返回某个话题对应的索引名。
func (c ElasticsearchConfig) IndexName(topic string) string {
	return c.IndexPrefix + topic
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// EmbeddingCacheConfig 控制查询向量在 Redis 中的缓存。TTL 为 0 时关闭缓存。
type EmbeddingCacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示（可选），为空时使用内置的回答规则。
type LLMPromptConfig struct {
	Rules string `mapstructure:"rules"`
}

// ChatConfig 控制单轮对话流水线的行为。
type ChatConfig struct {
	Topics          []string      `mapstructure:"topics"`
	TopK            int           `mapstructure:"top_k"`
	LinkAllSources  bool          `mapstructure:"link_all_sources"`
	MaxHistoryPairs int           `mapstructure:"max_history_pairs"`
	TurnTimeout     time.Duration `mapstructure:"turn_timeout"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// HasTopic 判断话题是否在配置的集合中。
func (c ChatConfig) HasTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// RetryConfig 是回答生成的重试策略。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// ProductsConfig 控制产品关联。
type ProductsConfig struct {
	TitleAllowList []string `mapstructure:"title_allow_list"`
	MaxResults     int      `mapstructure:"max_results"`
}

// IngestConfig 控制文稿入库时的切块与并发。
type IngestConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`
	ChunkOverlap     int `mapstructure:"chunk_overlap"`
	EmbedConcurrency int `mapstructure:"embed_concurrency"`
	MaxAttempts      int `mapstructure:"max_attempts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.topic", "transcript-ingest")
	v.SetDefault("kafka.group_id", "bents-assistant-ingest")
	v.SetDefault("elasticsearch.index_prefix", "transcripts-")
	v.SetDefault("embedding_cache.ttl", 24*time.Hour)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("chat.topics", []string{"bents", "shop-improvement", "tool-recommendations"})
	v.SetDefault("chat.top_k", 5)
	v.SetDefault("chat.link_all_sources", false)
	v.SetDefault("chat.max_history_pairs", 10)
	v.SetDefault("chat.turn_timeout", 60*time.Second)
	v.SetDefault("chat.retry.max_attempts", 3)
	v.SetDefault("chat.retry.delay", 2*time.Second)
	v.SetDefault("products.max_results", 15)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.embed_concurrency", 4)
	v.SetDefault("ingest.max_attempts", 3)
}

// Load 从指定的路径读取 YAML 文件并解析为 Config。
// 环境变量优先于文件中的值，例如 LLM_API_KEY 覆盖 llm.api_key。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查启动所必需的配置项。
func (c *Config) Validate() error {
	if len(c.Chat.Topics) == 0 {
		return errors.New("chat.topics 不能为空")
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("chat.top_k 必须为正数, 当前为 %d", c.Chat.TopK)
	}
	if c.Chat.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("chat.retry.max_attempts 必须为正数, 当前为 %d", c.Chat.Retry.MaxAttempts)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size 必须为正数, 当前为 %d", c.Ingest.ChunkSize)
	}
	return nil
}
