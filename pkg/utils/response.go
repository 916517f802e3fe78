package utils

import (
	"encoding/json"
	"net/http"

	"gradlink-backend/pkg/faults"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError carries a machine-readable code, a human message and, for
// validation failures, itemized per-field messages.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Meta holds pagination metadata.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// WriteJSONResponse writes the envelope with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse writes a 200 envelope.
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, data)
}

// WriteCreatedResponse writes a 201 envelope.
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusCreated, data)
}

// WriteErrorResponseWithCode writes an error envelope with a code.
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message, details string) {
	writeError(w, statusCode, &APIError{Code: code, Message: message, Details: details})
}

func writeError(w http.ResponseWriter, statusCode int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{Success: false, Error: apiErr}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteBadRequestResponse writes a 400 envelope.
func WriteBadRequestResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

// WriteValidationErrorResponse writes a 400 envelope with field errors.
func WriteValidationErrorResponse(w http.ResponseWriter, message string, fields map[string]string) {
	writeError(w, http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: message, Fields: fields})
}

// WriteUnauthorizedResponse writes a 401 envelope.
func WriteUnauthorizedResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

// WriteForbiddenResponse writes a 403 envelope.
func WriteForbiddenResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusForbidden, "FORBIDDEN", message, "")
}

// WriteNotFoundResponse writes a 404 envelope.
func WriteNotFoundResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND", message, "")
}

// WriteConflictResponse writes a 409 envelope.
func WriteConflictResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusConflict, "CONFLICT", message, "")
}

// WriteGoneResponse writes a 410 envelope, used for invitation codes
// that existed but are now terminal.
func WriteGoneResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusGone, "GONE", message, "")
}

// WriteTooManyRequestsResponse writes a 429 envelope.
func WriteTooManyRequestsResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusTooManyRequests, "RATE_LIMITED", message, "")
}

// WriteServiceUnavailableResponse writes a 503 envelope.
func WriteServiceUnavailableResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "UNAVAILABLE", message, "")
}

// WriteInternalServerErrorResponse writes a 500 envelope.
func WriteInternalServerErrorResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, "")
}

// WriteFaultResponse maps a classified domain error onto the envelope so
// callers can distinguish "fix your input" from "try again later" from
// "this is permanently gone".
func WriteFaultResponse(w http.ResponseWriter, err error) {
	message := err.Error()
	var fields map[string]string
	if f, ok := err.(*faults.Error); ok {
		fields = f.Fields
	}

	kind := faults.KindOf(err)
	switch kind {
	case faults.KindValidation:
		writeError(w, http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: message, Fields: fields})
	case faults.KindUnauthorized:
		WriteUnauthorizedResponse(w, message)
	case faults.KindForbidden:
		WriteForbiddenResponse(w, message)
	case faults.KindNotFound:
		WriteNotFoundResponse(w, message)
	case faults.KindGone:
		WriteGoneResponse(w, message)
	case faults.KindConflict:
		WriteConflictResponse(w, message)
	case faults.KindState:
		// Lifecycle violations are conflicts with the current state.
		WriteErrorResponseWithCode(w, http.StatusConflict, "STATE_ERROR", message, "")
	case faults.KindRateLimited:
		WriteTooManyRequestsResponse(w, message)
	case faults.KindUnavailable:
		WriteServiceUnavailableResponse(w, message)
	default:
		WriteInternalServerErrorResponse(w, message)
	}
}

// WritePaginatedResponse writes a 200 envelope with pagination metadata.
func WritePaginatedResponse(w http.ResponseWriter, data interface{}, page, perPage, total int) {
	totalPages := (total + perPage - 1) / perPage

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ParseJSONBody decodes the request body into v.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// GetQueryParam returns a query parameter or a default.
func GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}
