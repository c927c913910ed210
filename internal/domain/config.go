package domain

// KeyPrefix namespaces every key this service writes to the shared cache.
const KeyPrefix = "courseadvisor:"

// Chunking and retrieval defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultTopK         = 5
)
