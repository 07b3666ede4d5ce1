package domain

import "time"

// TraceRecord — персистентная аналитическая запись об одном запросе оркестрации.
// Семантика доставки: at-least-once. Падение между выработкой Decision и записью
// может потерять трассу, ретрай может создать дубль — читатели дедуплицируют
// по RequestID.
type TraceRecord struct {
	ID        string    `json:"id"`         // UUID записи
	RequestID string    `json:"request_id"` // Сквозной ID запроса (Trace-ID)
	Timestamp time.Time `json:"timestamp"`

	// Сводка входа (без байтов изображения — в аналитике им не место)
	Query     string `json:"query"`
	Provider  string `json:"provider,omitempty"`
	ImageName string `json:"image_name,omitempty"`

	// Снапшоты: что ответили сервисы, что решил фьюжн, с какой конфигурацией
	Results  ResultSet    `json:"results"`
	Decision Decision     `json:"decision"`
	Config   FusionConfig `json:"config"`

	ProcessingMs int64 `json:"processing_ms"`
}
