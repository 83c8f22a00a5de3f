package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RichardoC/agent-platform/internal/db"
	"github.com/RichardoC/agent-platform/internal/llm"
)

// Error codes surfaced in the response envelope.
const (
	codeNotFound   = "NOT_FOUND"
	codeValidation = "VALIDATION_ERROR"
	codeLLMError   = "LLM_ERROR"
	codeTimeout    = "TIMEOUT_ERROR"
	codeDatabase   = "DATABASE_ERROR"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data"`
	Error   *errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error:   &errorDetail{Code: code, Message: message},
	})
}

// classify maps a domain error onto an HTTP status and envelope code.
// Everything unmatched is treated as a storage-level failure.
func classify(err error) (int, string) {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, codeLLMError
	default:
		return http.StatusInternalServerError, codeDatabase
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}
