package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/timestamp"
	"bents-assistant-go/pkg/log"

	"github.com/google/uuid"
)

// Stage 是单轮对话流水线的状态。
type Stage string

const (
	StageValidating     Stage = "VALIDATING"
	StageClassifying    Stage = "CLASSIFYING"
	StageShortCircuit   Stage = "SHORT_CIRCUIT"
	StageRetrieving     Stage = "RETRIEVING"
	StageGenerating     Stage = "GENERATING"
	StagePostProcessing Stage = "POST_PROCESSING"
	StageDone           Stage = "DONE"
	StageFailed         Stage = "FAILED"
)

// 固定回复
const (
	InvalidQueryResponse  = "I'm sorry, but I didn't receive a valid question. Could you please ask a complete question?"
	UnknownTopicResponse  = "I'm sorry, but I don't recognize that topic. Please choose one of the available topics and ask your question again."
	InappropriateResponse = "I'm sorry, but this outside my context of answering. Is there something else I can help you with regarding woodworking, tools, or home improvement?"
	NotRelevantResponse   = "I'm sorry, but I'm specialized in topics related to our company, woodworking, tools, and home improvement. I can also engage in general conversation or continue our previous discussion. Could you please ask a question related to these topics, continue our previous conversation, or start with a greeting?"
	GreetingFallback      = "Hello! I'm here to help with woodworking, tools, shop improvement, and home improvement. What would you like to know?"
)

// punctuationOnly 是只由这些字符组成的输入视为空问题。
const punctuationOnly = ".,?!"

// IsEmptyQuery 判断输入是否为空或只包含标点。
func IsEmptyQuery(query string) bool {
	return strings.Trim(query, punctuationOnly+" \t\r\n") == ""
}

// ChatService 定义了单轮对话的处理接口。
type ChatService interface {
	// HandleTurn 处理一轮对话。输入错误与非相关问题以固定回复返回，
	// 只有生成失败和基础设施错误才返回 error，此时不会返回部分回答。
	HandleTurn(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
}

type chatService struct {
	relevance RelevanceService
	retrieval RetrievalService
	answers   AnswerService
	products  ProductService
	cfg       config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	relevance RelevanceService,
	retrieval RetrievalService,
	answers AnswerService,
	products ProductService,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		relevance: relevance,
		retrieval: retrieval,
		answers:   answers,
		products:  products,
		cfg:       cfg,
	}
}

// turn 记录一轮对话的标识和当前状态，用于日志。
type turn struct {
	id      string
	stage   Stage
	started time.Time
	log     *log.Logger
}

func newTurn() *turn {
	id := uuid.NewString()[:8]
	return &turn{id: id, started: time.Now(), log: log.With("turn", id)}
}

func (t *turn) enter(stage Stage) {
	t.log.Infow("chat turn stage", "from", t.stage, "to", stage, "elapsed", time.Since(t.started).String())
	t.stage = stage
}

func (t *turn) fail(err error) error {
	t.enter(StageFailed)
	t.log.Errorf("[ChatService] 本轮对话失败: %v", err)
	return err
}

// HandleTurn 依次执行校验、分类、检索、生成和后处理。
func (s *chatService) HandleTurn(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	t := newTurn()
	t.enter(StageValidating)

	// 1. 校验输入，不访问任何外部服务
	if IsEmptyQuery(req.Message) {
		t.log.Infof("[ChatService] 输入为空或只有标点")
		t.enter(StageDone)
		return model.NewCannedResponse(InvalidQueryResponse), nil
	}
	if !s.cfg.HasTopic(req.SelectedIndex) {
		t.log.Warnf("[ChatService] 未知话题: %q", req.SelectedIndex)
		t.enter(StageDone)
		return model.NewCannedResponse(UnknownTopicResponse), nil
	}
	query := strings.TrimSpace(req.Message)
	history := model.PairHistory(req.ChatHistory)

	// 2. 相关性分类
	t.enter(StageClassifying)
	label, err := s.relevance.Classify(ctx, query, history)
	if err != nil {
		return nil, t.fail(err)
	}
	if label != LabelRelevant {
		t.enter(StageShortCircuit)
		resp := s.shortCircuit(ctx, label, query, history)
		t.enter(StageDone)
		return resp, nil
	}

	// 3. 检索
	t.enter(StageRetrieving)
	chunks, err := s.retrieval.Retrieve(ctx, req.SelectedIndex, query, s.cfg.TopK)
	if err != nil {
		return nil, t.fail(err)
	}

	// 4. 生成回答（带重试）
	t.enter(StageGenerating)
	result, err := s.answers.Generate(ctx, AnswerRequest{
		Query:   query,
		History: model.LastPairs(history, s.cfg.MaxHistoryPairs),
		Chunks:  chunks,
	})
	if err != nil {
		return nil, t.fail(err)
	}
	t.log.Infof("[ChatService] 回答生成成功, 尝试次数: %d", result.Attempts)

	// 5. 时间戳改写与产品关联
	t.enter(StagePostProcessing)
	resp, err := s.assemble(ctx, result)
	if err != nil {
		return nil, t.fail(err)
	}

	t.enter(StageDone)
	return resp, nil
}

func (s *chatService) shortCircuit(ctx context.Context, label Label, query string, history []model.HistoryPair) *model.ChatResponse {
	switch label {
	case LabelGreeting:
		greeting, err := s.answers.Greet(ctx, query, history)
		if err != nil {
			log.Warnf("[ChatService] 生成问候语失败, 使用默认问候: %v", err)
			greeting = GreetingFallback
		}
		return model.NewCannedResponse(greeting)
	case LabelInappropriate:
		return model.NewCannedResponse(InappropriateResponse)
	default:
		return model.NewCannedResponse(NotRelevantResponse)
	}
}

// sources 是参与链接生成的视频。
type sources struct {
	urls   []string
	titles []string
}

// selectSources 决定哪些视频参与链接生成：默认只用第一个分块的视频，
// link_all_sources 打开时使用全部分块中去重后的视频。
func selectSources(chunks []model.TranscriptChunk, linkAll bool) sources {
	src := sources{urls: []string{}, titles: []string{}}
	if len(chunks) == 0 {
		return src
	}
	candidates := chunks[:1]
	if linkAll {
		candidates = chunks
	}

	seenURL := make(map[string]struct{})
	seenTitle := make(map[string]struct{})
	for _, c := range candidates {
		if u := strings.TrimSpace(c.SourceURL); u != "" {
			if _, ok := seenURL[u]; !ok {
				seenURL[u] = struct{}{}
				src.urls = append(src.urls, u)
			}
		}
		if title := strings.TrimSpace(c.Title); title != "" {
			if _, ok := seenTitle[title]; !ok {
				seenTitle[title] = struct{}{}
				src.titles = append(src.titles, title)
			}
		}
	}
	return src
}

func (s *chatService) assemble(ctx context.Context, result *GenerationResult) (*model.ChatResponse, error) {
	src := selectSources(result.SourceChunks, s.cfg.LinkAllSources)
	processed, links := timestamp.Rewrite(result.AnswerText, src.urls)

	resp := &model.ChatResponse{
		Response:        processed,
		InitialAnswer:   result.AnswerText,
		RelatedProducts: []model.Product{},
		URLs:            src.urls,
		Context:         make([]string, 0, len(result.SourceChunks)),
		VideoLinks:      links,
		VideoTitles:     src.titles,
	}
	for _, c := range result.SourceChunks {
		resp.Context = append(resp.Context, c.Text)
	}
	if len(result.SourceChunks) == 0 {
		return resp, nil
	}

	// 主视频固定为第一个分块的视频，去重后的列表只用于 urls 和 video_titles
	primary := result.SourceChunks[0]
	if u := strings.TrimSpace(primary.SourceURL); u != "" {
		resp.URL = &u
	}
	title := strings.TrimSpace(primary.Title)
	if title == "" {
		return resp, nil
	}
	resp.VideoTitle = &title
	products, err := s.products.Correlate(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("product correlation for %q failed: %w", title, err)
	}
	resp.RelatedProducts = products
	return resp, nil
}
