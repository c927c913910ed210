package domain

import (
	"math"
	"time"
)

// Record is one embedded chunk stored in an index.
type Record struct {
	ID     int
	Chunk  Chunk
	Vector []float32
}

// IndexInfo describes a persisted index snapshot.
type IndexInfo struct {
	SnapshotID string
	Path       string
	Model      string
	Dimensions int
	Records    int
	BuiltAt    time.Time
}

// IndexHandle is a read-only, fully loaded index snapshot. Records keep insertion order.
type IndexHandle struct {
	Info    IndexInfo
	Records []Record
}

// Len returns the number of records in the snapshot.
func (h *IndexHandle) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Records)
}

// ScoredChunk is one retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 for zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
