package model

// TranscriptSegment is one caption fragment as returned by the caption source.
// Segments are ordered by start time; Start and Dur are seconds.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	Dur   float64 `json:"dur"`
}
