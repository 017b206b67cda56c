package model

// HistoryPair 是一轮 (用户, 助手) 对话。
type HistoryPair struct {
	Human     string
	Assistant string
}

// PairHistory 将前端传来的扁平交替数组配对。末尾落单的用户消息与空助手回复配对。
func PairHistory(flat []string) []HistoryPair {
	pairs := make([]HistoryPair, 0, (len(flat)+1)/2)
	for i := 0; i < len(flat); i += 2 {
		p := HistoryPair{Human: flat[i]}
		if i+1 < len(flat) {
			p.Assistant = flat[i+1]
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// LastPairs 返回最近的 n 轮对话，n <= 0 时返回空。
func LastPairs(pairs []HistoryPair, n int) []HistoryPair {
	if n <= 0 {
		return nil
	}
	if len(pairs) > n {
		return pairs[len(pairs)-n:]
	}
	return pairs
}

// ChatRequest 是 /chat 接口的请求体，字段名与前端保持一致。
type ChatRequest struct {
	Message       string   `json:"message"`
	SelectedIndex string   `json:"selected_index"`
	ChatHistory   []string `json:"chat_history"`
}

// ChatResponse 是单轮对话组装后的返回结果，不做持久化。
type ChatResponse struct {
	Response        string              `json:"response"`
	InitialAnswer   string              `json:"initial_answer"`
	RelatedProducts []Product           `json:"related_products"`
	URL             *string             `json:"url"`
	URLs            []string            `json:"urls"`
	Context         []string            `json:"context"`
	VideoLinks      map[string][]string `json:"video_links"`
	VideoTitle      *string             `json:"video_title"`
	VideoTitles     []string            `json:"video_titles"`
}

// NewCannedResponse 构造一个不含检索结果的固定回复。
func NewCannedResponse(text string) *ChatResponse {
	return &ChatResponse{
		Response:        text,
		InitialAnswer:   text,
		RelatedProducts: []Product{},
		URLs:            []string{},
		Context:         []string{},
		VideoLinks:      map[string][]string{},
		VideoTitles:     []string{},
	}
}
