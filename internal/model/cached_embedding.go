package model

// CachedEmbedding is a stored vector for one (model, task type, text hash).
// Entries from different task types never alias: a query embedding and a
// document embedding of the same text are distinct rows.
type CachedEmbedding struct {
	ModelName   string
	TaskType    string
	ContentHash string
	Vector      []float32
	Ctime       int64
}

func (c CachedEmbedding) Dimension() int {
	return len(c.Vector)
}
