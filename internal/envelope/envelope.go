// Package envelope defines the uniform JSON response contract shared by
// every route in the dashboard proxy.
package envelope

import "github.com/gin-gonic/gin"

// Envelope is the wire shape returned by all proxy routes, on success
// and failure alike. The HTTP status code carries the failure class.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a success envelope with the given payload.
func OK(contextGin *gin.Context, statusCode int, data any) {
	contextGin.JSON(statusCode, Envelope{Success: true, Data: data})
}

// OKWithMessage writes a success envelope carrying both payload and message.
func OKWithMessage(contextGin *gin.Context, statusCode int, data any, message string) {
	contextGin.JSON(statusCode, Envelope{Success: true, Data: data, Message: message})
}

// Fail aborts the request with a failure envelope.
func Fail(contextGin *gin.Context, statusCode int, message string) {
	contextGin.AbortWithStatusJSON(statusCode, Envelope{Success: false, Message: message})
}

// Passthrough relays an upstream JSON body and status code unchanged.
func Passthrough(contextGin *gin.Context, statusCode int, body []byte) {
	if len(body) == 0 {
		contextGin.Status(statusCode)
		return
	}
	contextGin.Data(statusCode, "application/json", body)
}
