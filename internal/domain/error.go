package domain

// ErrorResponse is the standardized error body returned by the API.
// @Description Standardized error body returned by the API.
type ErrorResponse struct {
	Code     int    `json:"code" example:"400"`
	Category string `json:"category" example:"VALIDATION_ERROR"`
	Message  string `json:"message" example:"Product name must not be empty."`
}
