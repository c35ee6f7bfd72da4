// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AvailableResponse reports consumable stock of an item at a location.
type AvailableResponse struct {
	ItemID     string `json:"itemId"`
	LocationID string `json:"locationId"`
	Available  string `json:"available"`
}
