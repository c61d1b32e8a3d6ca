package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// RemoteError 分析服务返回错误时透传给客户端的内容
type RemoteError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// HandleError 把业务错误映射为 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case AnalysisTimeout:
			Error(c, http.StatusGatewayTimeout, ae.Error())
		case AnalysisRemote:
			c.JSON(http.StatusBadGateway, Response{
				Code:    http.StatusBadGateway,
				Message: "analysis service error",
				Data:    RemoteError{Status: ae.StatusCode, Body: ae.Body},
			})
		default:
			Error(c, http.StatusServiceUnavailable, ae.Error())
		}
		return
	}

	switch {
	case errors.Is(err, ErrAssignmentNotFound),
		errors.Is(err, ErrTestNotFound),
		errors.Is(err, ErrCandidateNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAnalysisNotFound),
		errors.Is(err, ErrUserNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateAssignment),
		errors.Is(err, ErrAnalysisInProgress):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidAnswer),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrNoAnswers),
		errors.Is(err, ErrAssignmentCompleted),
		errors.Is(err, ErrAssignmentExpired),
		errors.Is(err, ErrOutsideWindow),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrNotCompleted):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
