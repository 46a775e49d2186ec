package chat

// StreamChunk is one incremental unit of a streamed answer. Exactly one chunk
// per stream has Done set; it is the last one, carries empty Content and is
// the only chunk with Sources.
type StreamChunk struct {
	Content string   `json:"content"`
	Done    bool     `json:"done"`
	Sources []Source `json:"sources,omitempty"`
}
