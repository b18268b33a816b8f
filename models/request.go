package models

// ChatRequest is the JSON form of POST /chat. Form posts use the same field name.
type ChatRequest struct {
	Msg string `json:"msg" form:"msg"`
}
