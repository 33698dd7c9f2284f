package model

// Chunk is a contiguous slice of the concatenated transcript text.
//
// Start/End delimit the chunk within the source text. Overlap is the number of
// leading bytes shared with the previous chunk, so [Start+Overlap, End) is the
// chunk's non-overlapping span and concatenating those spans in Seq order
// reconstructs the source text exactly.
type Chunk struct {
	VideoID string `json:"video_id"`
	Seq     int    `json:"seq"`
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Overlap int    `json:"overlap"`
}

// ScoredChunk is one retrieval hit: a chunk plus its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
