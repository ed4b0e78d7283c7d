package middleware

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the payload under the "error" key of every failed response.
type ErrorBody struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Error: ErrorBody{Status: code, Message: message}})
}

// RespondWithMessage writes a success-shaped {"message": ...} body.
func RespondWithMessage(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"message": message})
}
