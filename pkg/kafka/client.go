// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/pkg/log"
	"bents-assistant-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a transcript task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.TranscriptTask) error
	// MarkFailed 在任务多次失败、不再重试时调用。
	MarkFailed(ctx context.Context, task tasks.TranscriptTask, cause error)
}

// Producer 发送文稿入库任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

// ProduceTranscriptTask 发送一个文稿处理任务到 Kafka。
func (p *Producer) ProduceTranscriptTask(ctx context.Context, task tasks.TranscriptTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ObjectName),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是 *kafka.Reader 中消费循环用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer 消费文稿任务，失败次数记录在 Redis 中。
type Consumer struct {
	cfg         config.KafkaConfig
	rdb         *redis.Client
	maxAttempts int64
	backoff     time.Duration
}

// NewConsumer 创建消费者。maxAttempts 次失败后提交 offset，不再重试。
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client, maxAttempts int) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{cfg: cfg, rdb: rdb, maxAttempts: int64(maxAttempts), backoff: 2 * time.Second}
}

func attemptsKey(task tasks.TranscriptTask) string {
	return fmt.Sprintf("kafka:attempts:%s", task.ObjectName)
}

// Start 阻塞消费直到 ctx 被取消。
func (c *Consumer) Start(ctx context.Context, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{c.cfg.Brokers},
		Topic:    c.cfg.Topic,
		GroupID:  c.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.cfg.Topic)
	c.consume(ctx, r, processor)
}

// consume 循环拉取消息直到 ctx 被取消。拉取失败（broker 不可达、重平衡等）时退避后继续。
func (c *Consumer) consume(ctx context.Context, r messageReader, processor TaskProcessor) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("从 Kafka 读取消息失败, %s 后重试: %v", c.backoff, err)
			select {
			case <-ctx.Done():
				log.Info("Kafka 消费者已停止")
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.TranscriptTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			c.commit(ctx, r, m)
			continue
		}

		if c.handle(ctx, task, processor) {
			c.commit(ctx, r, m)
		}
	}
}

// handle 处理单条任务，失败时原地重试，失败次数记录在 Redis 中以便进程重启后延续计数。
// 返回后消息总是可以提交：要么成功，要么已达到重试上限并标记失败。
// 只有 ctx 被取消时返回 false，此时不提交 offset，重启后重新投递。
func (c *Consumer) handle(ctx context.Context, task tasks.TranscriptTask, processor TaskProcessor) bool {
	log.Infof("开始处理文稿任务: Object=%s, Topic=%s", task.ObjectName, task.Topic)
	key := attemptsKey(task)

	for {
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("文稿任务处理成功: Object=%s", task.ObjectName)
			_ = c.rdb.Del(ctx, key).Err()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Errorf("处理文稿任务失败: Object=%s, Error: %v", task.ObjectName, err)

		attempts, incErr := c.rdb.Incr(ctx, key).Result()
		if incErr != nil {
			// Redis 不可用时无法计数，按单次失败处理
			log.Errorf("记录失败次数失败: %v", incErr)
			attempts = c.maxAttempts
		} else {
			_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
		}
		if attempts >= c.maxAttempts {
			log.Errorf("文稿任务多次失败(>=%d)，提交 offset 终止重试: Object=%s", c.maxAttempts, task.ObjectName)
			processor.MarkFailed(ctx, task, err)
			_ = c.rdb.Del(ctx, key).Err()
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff * time.Duration(attempts)):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, r messageReader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
