package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bents-assistant-go/internal/model"
	"bents-assistant-go/pkg/llm"
	"bents-assistant-go/pkg/log"
)

// Label 是相关性分类的结果。
type Label string

const (
	LabelGreeting      Label = "GREETING"
	LabelRelevant      Label = "RELEVANT"
	LabelInappropriate Label = "INAPPROPRIATE"
	LabelNotRelevant   Label = "NOT_RELEVANT"
)

// DefaultLabel 是无法识别分类结果时的默认值。宁可放行也不拦截正常问题。
const DefaultLabel = LabelRelevant

// ClassifierHistoryPairs 是分类时最多使用的历史轮数。
const ClassifierHistoryPairs = 3

// labelToken 是在大写回复中查找的子串。
type labelToken struct {
	label  Label
	tokens []string
}

// LabelPrecedence 是子串匹配的固定优先级，靠前的先命中。
var LabelPrecedence = []labelToken{
	{LabelGreeting, []string{"GREETING"}},
	{LabelInappropriate, []string{"INAPPROPRIATE"}},
	{LabelNotRelevant, []string{"NOT_RELEVANT", "NOT RELEVANT"}},
}

const relevancePromptTemplate = `Given the following question or message and the chat history, determine if it is:
1. A greeting or general conversation starter
2. Related to woodworking, tools, home improvement, or the assistant's capabilities
3. Related to the company, its products, services, or business operations
4. A continuation or follow-up question to the previous conversation
5. Related to violence, harmful activities, or other inappropriate content
6. Completely unrelated to the above topics and not a continuation of the conversation

If it falls under category 1, respond with 'GREETING'.
If it falls under categories 2, 3, or 4, respond with 'RELEVANT'.
If it falls under category 5, respond with 'INAPPROPRIATE'.
If it falls under category 6, respond with 'NOT_RELEVANT'.

Chat History:
%s

Current Question: %s

Response (GREETING, RELEVANT, INAPPROPRIATE, or NOT_RELEVANT):`

// RelevanceService 对用户的一轮输入做单次分类。
type RelevanceService interface {
	Classify(ctx context.Context, query string, history []model.HistoryPair) (Label, error)
}

type relevanceService struct {
	llmClient llm.Client
}

// NewRelevanceService 创建一个新的 RelevanceService 实例。
func NewRelevanceService(llmClient llm.Client) RelevanceService {
	return &relevanceService{llmClient: llmClient}
}

// Classify 调用一次生成服务，不重试。传输错误原样返回，由调用方按基础设施错误处理。
func (s *relevanceService) Classify(ctx context.Context, query string, history []model.HistoryPair) (Label, error) {
	prompt := buildRelevancePrompt(query, model.LastPairs(history, ClassifierHistoryPairs))
	zero := 0.0
	reply, err := s.llmClient.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, &llm.GenerationParams{Temperature: &zero})
	// 标签在回复开头，截断的回复仍可解析
	if err != nil && !errors.Is(err, llm.ErrLengthLimit) {
		return "", fmt.Errorf("relevance classification failed: %w", err)
	}

	label := ParseLabel(reply)
	log.Infof("[RelevanceService] 分类结果: %s, 原始回复: %q", label, reply)
	return label, nil
}

// ParseLabel 在大写回复中按优先级查找标签，均未命中时返回 DefaultLabel。
func ParseLabel(reply string) Label {
	upper := strings.ToUpper(reply)
	for _, lt := range LabelPrecedence {
		for _, tok := range lt.tokens {
			if strings.Contains(upper, tok) {
				return lt.label
			}
		}
	}
	return DefaultLabel
}

func buildRelevancePrompt(query string, history []model.HistoryPair) string {
	historyText := "No previous context"
	if len(history) > 0 {
		historyText = formatHistory(history)
	}
	return fmt.Sprintf(relevancePromptTemplate, historyText, query)
}

// formatHistory 把历史对话格式化为提示词中的文本。
func formatHistory(history []model.HistoryPair) string {
	var b strings.Builder
	for _, p := range history {
		fmt.Fprintf(&b, "Human: %s\nAssistant: %s\n", p.Human, p.Assistant)
	}
	return strings.TrimRight(b.String(), "\n")
}
