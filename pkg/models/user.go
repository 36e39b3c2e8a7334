package models

import (
	"net/http"
	"time"
)

// User represents a user record owned by the userdb service.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Age       int       `json:"age" db:"age"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	Name  string `json:"name" binding:"required,max=255" example:"John Doe"`
	Email string `json:"email" binding:"required,email,max=255" example:"john@example.com"`
	Age   *int   `json:"age" binding:"required,min=0,max=150" example:"30"`
}

// UpdateUserRequest is the request body for replacing a user's fields.
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"required,max=255" example:"John Doe"`
	Email string `json:"email" binding:"required,email,max=255" example:"john@example.com"`
	Age   *int   `json:"age" binding:"required,min=0,max=150" example:"30"`
}

// ManualMailRequest asks the notification service to dispatch a lifecycle mail directly.
// Operation is accepted as an alias of EventType.
type ManualMailRequest struct {
	Email     string    `json:"email" binding:"required,email" example:"carol@example.com"`
	EventType EventType `json:"eventType" example:"USER_CREATED"`
	Operation EventType `json:"operation,omitempty" swaggerignore:"true"`
}

// ResolvedType returns EventType, falling back to Operation.
func (r ManualMailRequest) ResolvedType() EventType {
	if r.EventType != "" {
		return r.EventType
	}
	return r.Operation
}

// ErrorResponse is the JSON body returned for failed HTTP requests.
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds an ErrorResponse stamped with the current time.
func NewErrorResponse(status int, message, path string) ErrorResponse {
	return ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      path,
		Timestamp: time.Now().UTC(),
	}
}
