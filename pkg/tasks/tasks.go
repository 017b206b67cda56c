// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// TranscriptTask represents a transcript ingestion job.
type TranscriptTask struct {
	UploadID   uint   `json:"upload_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	Topic      string `json:"topic"`
	VideoURL   string `json:"video_url"`
}
