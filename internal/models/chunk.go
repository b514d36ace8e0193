package models

// Chunk is a bounded span of extracted document text together with the
// 1-based page range it came from. Sequence is the chunk's position among
// all chunks cut from the document, starting at 0.
type Chunk struct {
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Sequence  int    `json:"sequence"`
}

// Covers reports whether page lies within the chunk's page range.
func (c Chunk) Covers(page int) bool {
	return page >= c.PageStart && page <= c.PageEnd
}
