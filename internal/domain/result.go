package domain

import "time"

// ServiceID идентифицирует внешний сервис идентификации
type ServiceID string

const (
	ServiceVerifier ServiceID = "verifier" // Сервис верификации лица (confidence score)
	ServiceChatbot  ServiceID = "chatbot"  // Чат-бот по нормативным вопросам (answer)
)

// ConfiguredServices — полный состав внешних сервисов системы.
// ResultSet никогда не содержит больше записей, чем здесь перечислено.
var ConfiguredServices = []ServiceID{ServiceVerifier, ServiceChatbot}

// CallStatus — типизированный исход одного внешнего вызова.
// ВАЖНО: StatusInvalidResponse и StatusTransportError — разные классы отказов.
// Первый сигнализирует о контрактном баге интеграции (ответ пришел, но не прошел
// валидацию формы), второй — о сетевой проблеме. Смешивание этих статусов ведет
// к «вечному Unknown» при живом сервисе, именно этот дефект мы здесь закрываем.
type CallStatus string

const (
	StatusSuccess         CallStatus = "success"
	StatusTimeout         CallStatus = "timeout"
	StatusTransportError  CallStatus = "transport_error"
	StatusInvalidResponse CallStatus = "invalid_response"
)

// ServiceResult — исход одного вызова внешнего сервиса.
// Инвариант: полезная нагрузка (Confidence/Verified/PersonID/Answer)
// заполняется только при Status == StatusSuccess.
type ServiceResult struct {
	ServiceID ServiceID  `json:"service_id"`
	Status    CallStatus `json:"status"`

	// Payload верификатора
	Confidence float64 `json:"confidence,omitempty"` // [0,1]
	Verified   bool    `json:"verified,omitempty"`
	PersonID   string  `json:"person_id,omitempty"`

	// Payload чат-бота
	Answer string `json:"answer,omitempty"`

	// Детализация отказа — только для логов и трассы, не для фьюжна
	Error string `json:"error,omitempty"`

	Latency time.Duration `json:"latency"`
}

// OK сообщает, дошел ли вызов до валидного ответа
func (r ServiceResult) OK() bool {
	return r.Status == StatusSuccess
}

// ResultSet — выход Dispatcher за один запрос оркестрации.
// Отсутствующий ключ означает, что сервис не успел ответить до общего дедлайна
// (это НЕ то же самое, что Timeout внутри клиента).
type ResultSet map[ServiceID]ServiceResult

// SuccessCount считает сервисы с валидным ответом
func (s ResultSet) SuccessCount() int {
	n := 0
	for _, r := range s {
		if r.OK() {
			n++
		}
	}
	return n
}

// Verifier возвращает результат верификатора, если тот вообще ответил
func (s ResultSet) Verifier() (ServiceResult, bool) {
	r, ok := s[ServiceVerifier]
	return r, ok
}

// Chatbot возвращает результат чат-бота, если тот вообще ответил
func (s ResultSet) Chatbot() (ServiceResult, bool) {
	r, ok := s[ServiceChatbot]
	return r, ok
}

// IdentifyInput — вход одного запроса оркестрации.
// Для верификатора — байты изображения, для чат-бота — текст и подсказка провайдера.
type IdentifyInput struct {
	RequestID string

	Image     []byte
	ImageName string

	Query    string
	Provider string // напр. "deepseek" или "chatgpt"
	TopK     int
}
