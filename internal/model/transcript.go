// Package model 定义了与数据库表、索引文档以及接口载荷对应的 Go 结构体。
package model

// TranscriptChunk 是检索的基本单位：一段带视频元数据的文稿文本。
type TranscriptChunk struct {
	Text      string  `json:"text"`
	Title     string  `json:"title"`
	SourceURL string  `json:"source_url,omitempty"`
	ChunkID   string  `json:"chunk_id"`
	Score     float64 `json:"score"`
}

// EsTranscriptChunk 定义了存储在 Elasticsearch 中的文稿分块文档。
type EsTranscriptChunk struct {
	ChunkID      string    `json:"chunk_id"` // 例如 "<title>_chunk_3"
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector,omitempty"`
	ModelVersion string    `json:"model_version"`
	UploadID     uint      `json:"upload_id"`
}

// ToChunk 转换为检索结果使用的 TranscriptChunk。
func (d EsTranscriptChunk) ToChunk(score float64) TranscriptChunk {
	return TranscriptChunk{
		Text:      d.TextContent,
		Title:     d.Title,
		SourceURL: d.URL,
		ChunkID:   d.ChunkID,
		Score:     score,
	}
}
