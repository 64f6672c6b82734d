package api

import (
	"github.com/gin-gonic/gin"
)

// Error codes used in API error bodies.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeDuplicate  = "duplicate_job_id"
	CodeConflict   = "conflict"
	CodeUpstream   = "upstream_error"
	CodeInternal   = "internal_error"
)

// errorBody is the error envelope: {"error":{code,message,details?}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func respondErrorDetails(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}
