package sdk

import (
	"encoding/json"
)

// StatusType classifies an API response
type StatusType string

const (
	StatusSuccess StatusType = "success"
	StatusFail    StatusType = "fail"
	StatusError   StatusType = "error"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  StatusType `json:"status"`          // Status message
	Code    int        `json:"code"`            // Status code
	Message string     `json:"message"`         // Human-readable message
	Data    T          `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any        `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a format suitable for JSON responses
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccess(message string) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  StatusSuccess,
		Code:    200,
		Message: message,
	}
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Domain transfer types */

// Contact is the wire shape of a canonical contact record
type Contact struct {
	ID          string            `json:"id"`
	Fields      map[string]string `json:"fields"`
	DisplayName string            `json:"display_name"`
}

// Suggestion is the wire shape of one proposed field change
type Suggestion struct {
	Field        string  `json:"field"`
	Label        string  `json:"label"`
	CurrentValue *string `json:"current_value"`
	NewValue     string  `json:"new_value"`
	Context      string  `json:"context,omitempty"`
	Apply        bool    `json:"apply"`
	HasChange    bool    `json:"has_change"`
}

/** Requests */

// SearchContactsRequest represents the request body for a contact search
type SearchContactsRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Query    string `json:"query" binding:"required"`
}

// UpdateContactRequest represents the request body for a direct field update
type UpdateContactRequest struct {
	UserID   string            `json:"user_id" binding:"required"`
	Provider string            `json:"provider" binding:"required"`
	Updates  map[string]string `json:"updates" binding:"required"`
}

// ReconcileRequest represents the request body for reconciling proposed
// suggestions against the live record
type ReconcileRequest struct {
	UserID      string       `json:"user_id" binding:"required"`
	Provider    string       `json:"provider" binding:"required"`
	Suggestions []Suggestion `json:"suggestions" binding:"required"`
}

// ApplyRequest represents the request body for applying reviewed suggestions
type ApplyRequest struct {
	UserID      string       `json:"user_id" binding:"required"`
	Provider    string       `json:"provider" binding:"required"`
	Suggestions []Suggestion `json:"suggestions" binding:"required"`
}

// SuggestRequest represents the request body for generating suggestions
// from meeting notes
type SuggestRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Notes    string `json:"notes" binding:"required"`
}

/** Responses */

// ApplyResponse represents the outcome of applying suggestions. Updated
// is false when nothing was marked for application; Contact is the
// post-update record when a write happened.
type ApplyResponse struct {
	Updated bool     `json:"updated"`
	Contact *Contact `json:"contact,omitempty"`
}
