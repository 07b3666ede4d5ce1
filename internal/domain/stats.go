package domain

// IdentificationStats — агрегат по вердиктам за окно времени
type IdentificationStats struct {
	Total         int64   `json:"total"`
	Matched       int64   `json:"matched"`
	NotMatched    int64   `json:"not_matched"`
	Unknown       int64   `json:"unknown"`
	MatchRate     float64 `json:"match_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	MinConfidence float64 `json:"min_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
}

// QueryStats — агрегат по времени обработки запросов за окно
type QueryStats struct {
	TotalQueries    int64   `json:"total_queries"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
	MinProcessingMs float64 `json:"min_processing_ms"`
	MaxProcessingMs float64 `json:"max_processing_ms"`
	P95ProcessingMs float64 `json:"p95_processing_ms"`
}
