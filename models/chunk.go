package models

// Chunk is a span of a source document as stored in the vector index.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
	Index  int    `json:"index"`

	// FileHash is the sha256 of the source file at indexing time.
	FileHash string `json:"file_hash,omitempty"`
}

// IndexEntry pairs a chunk with its embedding for an upsert.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// Prompt is the model input for one exchange: the persona with retrieved
// context filled in, and the user's message as its own turn.
type Prompt struct {
	System string
	User   string
}
