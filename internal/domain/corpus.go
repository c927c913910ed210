package domain

// Document is one source table serialized to flat text.
type Document struct {
	SourceID     string
	RawText      string
	EncodingUsed string
}

// Chunk is a contiguous segment of a Document. Offset counts characters (runes)
// from the start of the document.
type Chunk struct {
	Text     string
	SourceID string
	Offset   int
}

// Corpus is the outcome of reading one archive.
type Corpus struct {
	Documents []Document
	Failures  []*UnreadableTableError
	Skipped   []string // members ignored because of their extension
}
