package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// 管道错误
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeInvalidArgument      ErrorCode = "INVALID_ARGUMENT"
	ErrCodeEmbeddingFailed      ErrorCode = "EMBEDDING_FAILED"
	ErrCodeGenerationFailed     ErrorCode = "GENERATION_FAILED"

	// 外部服务错误
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// 文件处理错误
	ErrCodeInvalidFileFormat ErrorCode = "INVALID_FILE_FORMAT"
	ErrCodeParseFailed       ErrorCode = "PARSE_FAILED"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Type    ErrorType   `json:"type"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidationError 创建校验错误
func NewValidationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Type:    ErrorTypeValidation,
	}
}

// NewBusinessError 创建业务错误
func NewBusinessError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Type:    ErrorTypeBusiness,
	}
}

// NewExternalError 创建外部服务错误
func NewExternalError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// GetAppError 将任意error规范化为AppError
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal error",
		Type:    ErrorTypeSystem,
		Cause:   err,
	}
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
