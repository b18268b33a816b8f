package models

type ChatResponse struct {
	Answer string `json:"answer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryResponse is the structure for the response of the GET /history endpoint.
type HistoryResponse struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
	Turns     []Turn `json:"turns"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Ready   bool   `json:"ready"`
}
