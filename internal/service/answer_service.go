package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/pkg/llm"
	"bents-assistant-go/pkg/log"
)

// MinAnswerLength 是合法回答的最少字符数，更短的回答视为被截断。
const MinAnswerLength = 20

// truncationMarkers 是回答末尾出现即视为截断的省略标记。
var truncationMarkers = []string{"...", "…"}

// DefaultRules 是回答生成的系统提示，可由 llm.prompt.rules 覆盖。
const DefaultRules = `You are an assistant expert representing Jason Bent, answering woodworking questions as Jason Bent.
Always provide your responses in English, regardless of the language of the input or context.
Answer questions based only on the provided context, which comes from transcripts of Jason Bent's videos.
1. Always include the exact relevant content from the transcript, starting from the beginning of the relevant section. Use quotation marks to denote direct quotes.
2. After providing the direct quote, summarize or explain the answer if necessary.
3. Provide the timestamp for where the information was found in the original video. You must use the format {timestamp:MM:SS} for timestamps under an hour, and {timestamp:HH:MM:SS} for longer videos.
4. Do not include any URLs in your response. Just provide the timestamps in the specified format.
5. When a timestamp may be inaccurate, use language like "around" or "approximately".
6. If the question cannot be answered from the given context, state this clearly.
7. For multi-part questions, address each part separately and clearly.`

const greetingRules = `You are a friendly assistant for Bent's Woodworking. Reply to the user's greeting warmly in one or two sentences, in English, and invite them to ask about woodworking, tools, shop improvement, or home improvement.`

// RetryPolicy 描述回答生成的有界重试：总次数、固定间隔和可重试错误的判定。
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// IsContentError 判断错误是否为可重试的内容错误。
func IsContentError(err error) bool {
	return errors.Is(err, ErrNoResponse) || errors.Is(err, ErrTruncatedResponse)
}

// NewRetryPolicy 由配置构造重试策略。
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.Delay, Retryable: IsContentError}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsContentError(err)
	}
	return p.Retryable(err)
}

// AnswerRequest 是一次回答生成的输入。
type AnswerRequest struct {
	Query   string
	History []model.HistoryPair
	Chunks  []model.TranscriptChunk
}

// GenerationResult 是通过校验的回答。
type GenerationResult struct {
	AnswerText   string
	SourceChunks []model.TranscriptChunk
	Attempts     int
}

// AnswerService 基于检索到的上下文生成回答。
type AnswerService interface {
	// Generate 按重试策略生成并校验回答，耗尽后返回 *GenerationError。
	Generate(ctx context.Context, req AnswerRequest) (*GenerationResult, error)
	// Greet 为问候语生成一句开场白，只调用一次。
	Greet(ctx context.Context, query string, history []model.HistoryPair) (string, error)
}

type answerService struct {
	llmClient llm.Client
	rules     string
	policy    RetryPolicy
}

// NewAnswerService 创建一个新的 AnswerService 实例。rules 为空时使用 DefaultRules。
func NewAnswerService(llmClient llm.Client, rules string, policy RetryPolicy) AnswerService {
	if strings.TrimSpace(rules) == "" {
		rules = DefaultRules
	}
	return &answerService{llmClient: llmClient, rules: rules, policy: policy}
}

// ValidateAnswer 检查回答非空且没有被截断。
func ValidateAnswer(answer string) error {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return ErrNoResponse
	}
	if utf8.RuneCountInString(trimmed) < MinAnswerLength {
		return fmt.Errorf("%w: answer has %d characters", ErrTruncatedResponse, utf8.RuneCountInString(trimmed))
	}
	for _, marker := range truncationMarkers {
		if strings.HasSuffix(trimmed, marker) {
			return fmt.Errorf("%w: answer ends with %q", ErrTruncatedResponse, marker)
		}
	}
	return nil
}

// Generate 执行显式的有界重试循环。
func (s *answerService) Generate(ctx context.Context, req AnswerRequest) (*GenerationResult, error) {
	messages := s.buildMessages(req)
	maxAttempts := s.policy.attempts()

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		answer, err := s.generateOnce(ctx, messages)
		if err == nil {
			log.Infof("[AnswerService] 第 %d 次生成成功, 回答长度: %d", attempt, utf8.RuneCountInString(answer))
			return &GenerationResult{AnswerText: answer, SourceChunks: req.Chunks, Attempts: attempt}, nil
		}
		lastErr = err
		log.Warnf("[AnswerService] 第 %d/%d 次生成失败: %v", attempt, maxAttempts, err)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("answer generation aborted after %d attempt(s): %w", attempt, ctx.Err())
		}
		if !s.policy.retryable(err) || attempt == maxAttempts {
			break
		}
		if err := wait(ctx, s.policy.Delay); err != nil {
			return nil, fmt.Errorf("answer generation aborted after %d attempt(s): %w", attempt, err)
		}
	}

	kind := ErrNoResponse
	if errors.Is(lastErr, ErrTruncatedResponse) {
		kind = ErrTruncatedResponse
	}
	return nil, &GenerationError{Kind: kind, Attempts: attempt, Last: lastErr}
}

// generateOnce 调用一次生成服务并校验结果。长度截断归为 ErrTruncatedResponse，
// 其余调用错误归为 ErrNoResponse。
func (s *answerService) generateOnce(ctx context.Context, messages []llm.Message) (string, error) {
	answer, err := s.llmClient.Chat(ctx, messages, nil)
	if errors.Is(err, llm.ErrLengthLimit) {
		return "", fmt.Errorf("%w: %v", ErrTruncatedResponse, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	if err := ValidateAnswer(answer); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Greet 不做重试，失败由调用方兜底。
func (s *answerService) Greet(ctx context.Context, query string, history []model.HistoryPair) (string, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: greetingRules}}
	for _, p := range model.LastPairs(history, ClassifierHistoryPairs) {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: p.Human})
		if p.Assistant != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: p.Assistant})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	reply, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil && !errors.Is(err, llm.ErrLengthLimit) {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrNoResponse
	}
	return strings.TrimSpace(reply), nil
}

func (s *answerService) buildMessages(req AnswerRequest) []llm.Message {
	historyText := "No previous context"
	if len(req.History) > 0 {
		historyText = formatHistory(req.History)
	}
	user := fmt.Sprintf("Context: %s\n\nChat History: %s\n\nQuestion: %s", buildContextText(req.Chunks), historyText, req.Query)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: s.rules},
		{Role: llm.RoleUser, Content: user},
	}
}

// buildContextText 拼接检索到的分块，标注所属视频。
func buildContextText(chunks []model.TranscriptChunk) string {
	if len(chunks) == 0 {
		return "No relevant transcript passages were found."
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s) %s", i+1, c.Title, c.Text)
	}
	return b.String()
}

// wait 等待 d，ctx 取消时提前返回。d <= 0 时立即返回。
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
