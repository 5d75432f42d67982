package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// RespondSuccess sends a success response with a message.
func RespondSuccess(c *gin.Context, message string) {
	Respond(c, http.StatusOK, "success", message, nil)
}

// RespondSuccessData sends a success response with message and data.
func RespondSuccessData(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}
