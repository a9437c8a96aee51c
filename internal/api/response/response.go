package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alpes214/crawler/internal/apperrors"
)

// Response is the uniform JSON envelope every admin endpoint returns.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

const (
	SuccessCode = 0
	ErrorCode   = 1
)

func successResponse(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: SuccessCode, Msg: msg, Data: data})
}

func errorResponse(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, Response{Code: code, Msg: msg})
}

// Ok returns a successful response with data.
func Ok(c *gin.Context, data interface{}) {
	successResponse(c, "success", data)
}

// OkWithMessage returns a successful response with a custom message.
func OkWithMessage(c *gin.Context, msg string, data interface{}) {
	successResponse(c, msg, data)
}

// BadRequest handles binding/format errors (HTTP 400).
func BadRequest(c *gin.Context, msg string, err error) {
	if msg == "" {
		msg = "invalid request"
	}
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusBadRequest, ErrorCode, msg)
}

// NotFound handles a missing resource (HTTP 404).
func NotFound(c *gin.Context) {
	errorResponse(c, http.StatusNotFound, ErrorCode, "resource not found")
}

// ServerError handles an internal error (HTTP 500).
func ServerError(c *gin.Context, err error) {
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusInternalServerError, ErrorCode, "internal server error")
}

// FromAppError maps an *apperrors.Error onto the matching HTTP status,
// keeping the machine-stable kind visible in the message so control-plane
// clients can branch on it.
func FromAppError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.Error)
	if !ok {
		ServerError(c, err)
		return
	}
	c.Error(err).SetType(gin.ErrorTypePrivate)

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperrors.NotFound:
		status = http.StatusNotFound
	case apperrors.Duplicate, apperrors.IllegalTransition, apperrors.HTMLNotAvailable, apperrors.Validation:
		status = http.StatusBadRequest
	case apperrors.NoProxyAvailable, apperrors.BrokerUnavailable, apperrors.StoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	errorResponse(c, status, ErrorCode, string(appErr.Kind)+": "+appErr.Msg)
}
