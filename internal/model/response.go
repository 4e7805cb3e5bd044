package model

import "time"

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// RecordUpdate is the request body for a value-matched update: the record
// currently stored and the record that replaces it.
type RecordUpdate struct {
	Old Product `json:"old"`
	New Product `json:"new"`
}

// ImportSummary is returned after a bulk import.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Report   []string `json:"report"`
}

// Change event sources.
const (
	SourceRecords  = "records"
	SourceProducts = "products"
)

// Change event types.
const (
	ChangeInserted = "inserted"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeImported = "imported"
)

// ChangeEvent is pushed to change-feed subscribers after a successful mutation.
type ChangeEvent struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	ID        int64     `json:"id,omitempty"`
	Product   *Product  `json:"product,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeEvent creates a change event stamped with the current UTC time.
func NewChangeEvent(source, changeType string, p *Product) ChangeEvent {
	return ChangeEvent{
		Type:      changeType,
		Source:    source,
		Product:   p,
		Timestamp: time.Now().UTC(),
	}
}
