package models

import "time"

// VideoAsset is the durable record for one ingested file. StorageKey is the
// sole back-reference into the object store and is never reused.
type VideoAsset struct {
	VideoId          string    `dynamodbav:"video_id" json:"id"`
	Title            string    `dynamodbav:"title" json:"title"`
	Description      string    `dynamodbav:"description" json:"description"`
	StorageKey       string    `dynamodbav:"storage_key" json:"-"`
	OriginalFilename string    `dynamodbav:"original_filename" json:"filename"`
	SizeBytes        int64     `dynamodbav:"size_bytes" json:"size"`
	MimeType         string    `dynamodbav:"mime_type" json:"mimeType"`
	Visibility       bool      `dynamodbav:"visibility" json:"visibility"`
	ViewCount        int64     `dynamodbav:"view_count" json:"viewCount"`
	UploaderIdentity string    `dynamodbav:"uploader_identity" json:"-"`
	CreatedAt        time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// VideoSummary is the public listing shape.
type VideoSummary struct {
	VideoId     string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SizeBytes   int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (v *VideoAsset) Summary() VideoSummary {
	return VideoSummary{
		VideoId:     v.VideoId,
		Title:       v.Title,
		Description: v.Description,
		SizeBytes:   v.SizeBytes,
		CreatedAt:   v.CreatedAt,
	}
}

// VideoDetail is the single-asset response including a freshly issued
// streaming URL.
type VideoDetail struct {
	VideoAsset
	StreamURL string `json:"streamUrl"`
}

type BulkStatus string

const (
	BulkSuccess         BulkStatus = "success"
	BulkValidationError BulkStatus = "validation-error"
	BulkTransferError   BulkStatus = "transfer-error"
)

// BulkResult is the per-file outcome of a batch ingestion. Results are ordered
// exactly as the input file list.
type BulkResult struct {
	Name    string     `json:"name"`
	Status  BulkStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
	VideoId string     `json:"id,omitempty"`
}
