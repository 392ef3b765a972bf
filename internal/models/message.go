package models

// Message kinds accepted by the ingest pipeline.
const (
	KindText  = "text"
	KindImage = "image"
	KindFile  = "file"
)

// ValidKind reports whether kind is one of the accepted message kinds.
func ValidKind(kind string) bool {
	return kind == KindText || kind == KindImage || kind == KindFile
}

// Message represents a single chat message. Messages are immutable once
// created and are only removed when their conversation is deleted.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room"`
	SenderID  string `json:"senderId"`
	Kind      string `json:"type"`
	Content   string `json:"content"` // text or opaque payload reference (data URI)
	FileName  string `json:"fileName,omitempty"`
	Timestamp int64  `json:"ts"` // Unix ms
}
