package model

import (
	"strings"
)

// MediaInfo describes the uploaded file a non-text message points to
type MediaInfo struct {
	URL      string `json:"url" gorm:"size:1000"`
	MimeType string `json:"mime_type" gorm:"size:100"`
	FileName string `json:"file_name" gorm:"size:255"`
	FileSize int64  `json:"file_size"`
}

func (m MediaInfo) IsZero() bool {
	return m.URL == "" && m.MimeType == "" && m.FileName == "" && m.FileSize == 0
}

// KindForMime maps a content type to the message kind it should be sent as.
func KindForMime(contentType string) MessageKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MessageKindImage
	case strings.HasPrefix(ct, "video/"):
		return MessageKindVideo
	case strings.HasPrefix(ct, "audio/"):
		return MessageKindAudio
	default:
		return MessageKindDocument
	}
}

// UploadResponse is returned after a successful file upload
type UploadResponse struct {
	URL      string      `json:"url"`
	FileName string      `json:"file_name"`
	FileSize int64       `json:"file_size"`
	MimeType string      `json:"mime_type"`
	Kind     MessageKind `json:"kind"`
}
