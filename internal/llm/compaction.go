package llm

import "context"

// CompactionItem is the opaque, provider-held conversation state returned by
// a compaction endpoint. It stands in for the evicted turns on later calls.
type CompactionItem struct {
	ID               string `json:"id,omitempty"`
	EncryptedContent string `json:"encrypted_content"`
}

// CompactionProvider is implemented by providers whose API can compact a
// conversation server-side instead of the caller evicting messages manually.
type CompactionProvider interface {
	Compact(ctx context.Context, msgs []Message, model string, previous *CompactionItem) (*CompactionItem, error)
}
