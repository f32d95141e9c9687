package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope shared by the HTTP API and websocket acks.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK builds a successful envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Fail builds an error envelope.
func Fail(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// Success sends a successful response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, OK(data))
}

// Created sends a 201 created response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, OK(data))
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Fail(code, message))
}

// Abort sends an error response and stops the handler chain.
func Abort(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, Fail(code, message))
}

// Coder is implemented by errors that carry a machine readable code and
// the HTTP status they map to.
type Coder interface {
	error
	ErrorCode() string
	HTTPStatus() int
}

// CodeInternal is used for errors that do not implement Coder.
const CodeInternal = "INTERNAL_ERROR"

// FailFromError builds an error envelope and status from err.
func FailFromError(err error) (int, Response) {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.HTTPStatus(), Fail(coder.ErrorCode(), coder.Error())
	}
	return http.StatusInternalServerError, Fail(CodeInternal, "internal server error")
}

// FromError sends the error envelope for err.
func FromError(c *gin.Context, err error) {
	status, resp := FailFromError(err)
	c.JSON(status, resp)
}

// AbortFromError sends the error envelope for err and stops the chain.
func AbortFromError(c *gin.Context, err error) {
	status, resp := FailFromError(err)
	c.AbortWithStatusJSON(status, resp)
}
