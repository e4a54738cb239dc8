package handlers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Status int         `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

// SuccessResponse wraps data with status 0
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

// ErrorResponse carries the HTTP status code in the envelope
func ErrorResponse(code int, msg string) *APIResponse {
	return &APIResponse{Status: code, Msg: msg}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse(code, msg))
}
