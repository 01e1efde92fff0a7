package models

import "time"

// DatasetChangedEvent is consumed from RabbitMQ. It is emitted by the catalog
// both when a dataset is updated (dataset.updated) and when its page is served
// to the editor afterwards (dataset.viewed).
type DatasetChangedEvent struct {
	DatasetID string    `json:"dataset_id"`
	SessionID string    `json:"session_id"`
	User      string    `json:"user,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DatasetAnnouncedEvent carries composed announcement text to the feed poster
type DatasetAnnouncedEvent struct {
	DatasetID   string    `json:"dataset_id"`
	SessionID   string    `json:"session_id"`
	Text        string    `json:"text"`
	IsNew       bool      `json:"is_new"`
	AnnouncedAt time.Time `json:"announced_at"`
}
